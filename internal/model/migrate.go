package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom constraints.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Account{},
		&ReferralEdge{},
		&Token{},
	); err != nil {
		return err
	}

	// An account may never reference itself as referrer.
	if err := db.Exec(
		"DO $$ BEGIN " +
			"ALTER TABLE accounts ADD CONSTRAINT chk_accounts_no_self_ref CHECK (ref_by IS NULL OR ref_by <> user_id); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$",
	).Error; err != nil {
		return err
	}

	return db.Exec(
		"DO $$ BEGIN " +
			"ALTER TABLE referrals ADD CONSTRAINT chk_referrals_no_self_ref CHECK (ref_by <> new_user); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$",
	).Error
}
