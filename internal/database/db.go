package database

import (
	"log"

	"cashops/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// Migrate creates or updates the schema for every governed table. Tests run
// it against sqlite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.UserAccount{},
		&model.RefreshToken{},
		&model.ApprovalRequest{},
		&model.AuditLog{},
		&model.MonthLock{},
		&model.VendorMaster{},
		&model.BankStoreMaster{},
		&model.StoreMapping{},
		&model.ChargeConfig{},
		&model.VendorCharge{},
		&model.ChargeSlab{},
		&model.Waiver{},
		&model.VendorFileFormat{},
		&model.PickupRule{},
		&model.RemittanceEntry{},
		&model.ReconciliationResult{},
		&model.ReconciliationCorrection{},
		&model.ExceptionRecord{},
	); err != nil {
		return err
	}

	// At most one open request per governed target, enforced by the database
	// so that two racing submissions cannot both commit. Works on postgres
	// and on the sqlite used in tests.
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_approval_open_target " +
			"ON approval_requests (entity_type, entity_id) " +
			"WHERE status IN ('PENDING','CLARIFICATION_REQUESTED')",
	).Error
}
