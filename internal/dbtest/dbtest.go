// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"inpatient-capacity-backend/internal/database"
	"inpatient-capacity-backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh migrated SQLite database held on a single connection,
// so transactions from concurrent goroutines queue instead of interleaving.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedPatient registers an outpatient in the shared patients table
func SeedPatient(t testing.TB, db *gorm.DB, name string) *models.Patient {
	t.Helper()

	patient := &models.Patient{FullName: name, PatientType: models.PatientTypeOutpatient}
	require.NoError(t, db.Create(patient).Error)
	return patient
}

// SeedCharge records an unpaid bill item against an admission
func SeedCharge(t testing.TB, db *gorm.DB, admissionID uint, category string, amount float64) *models.BillItem {
	t.Helper()

	item := &models.BillItem{AdmissionID: admissionID, Category: category, Amount: amount}
	require.NoError(t, db.Create(item).Error)
	return item
}

// SettleCharges marks every bill item of an admission paid
func SettleCharges(t testing.TB, db *gorm.DB, admissionID uint) {
	t.Helper()

	require.NoError(t, db.Model(&models.BillItem{}).
		Where("admission_id = ?", admissionID).
		Update("is_paid", true).Error)
}
