package model

import "time"

// Account is a messaging-platform user known to the engine. The ID is
// supplied externally and never generated here.
type Account struct {
	ID        int64     `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	RefBy     *int64    `gorm:"column:ref_by" json:"ref_by,omitempty"`
	RefsCount int       `gorm:"column:refs_count;not null;default:0" json:"refs_count"`
	JoinedAt  time.Time `gorm:"column:joined_at;not null" json:"joined_at"`
	Paid      bool      `gorm:"column:paid;not null;default:false" json:"paid"`
}

func (Account) TableName() string { return "accounts" }
