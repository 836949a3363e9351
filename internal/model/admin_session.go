package model

import "time"

type AdminSessionState string

const (
	AdminSessionIdle          AdminSessionState = "idle"
	AdminSessionAwaitingInput AdminSessionState = "awaiting_input"
)

type AdminAction string

const (
	AdminActionGiveToken AdminAction = "give_token"
	AdminActionBroadcast AdminAction = "broadcast"
)

// AdminSession is the per-admin input state machine:
// Idle -> AwaitingInput -> Idle.
type AdminSession struct {
	ID        string            `json:"id"`
	AdminID   int64             `json:"admin_id"`
	State     AdminSessionState `json:"state"`
	Action    AdminAction       `json:"action,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Awaiting reports whether the session still waits for input at now.
func (s *AdminSession) Awaiting(now time.Time) bool {
	return s != nil && s.State == AdminSessionAwaitingInput && now.Before(s.ExpiresAt)
}
