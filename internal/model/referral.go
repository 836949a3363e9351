package model

import "time"

// ReferralEdge links a newly registered account to the account that
// referred it. Credited flips false->true once and never reverses.
type ReferralEdge struct {
	NewUser   int64     `gorm:"column:new_user;primaryKey;autoIncrement:false" json:"new_user"`
	RefBy     int64     `gorm:"column:ref_by;not null;index" json:"ref_by"`
	Credited  bool      `gorm:"column:credited;not null;default:false" json:"credited"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (ReferralEdge) TableName() string { return "referrals" }
