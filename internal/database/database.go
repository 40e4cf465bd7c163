package database

import (
	"errors"
	"fmt"

	"biblioteca/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured database. TranslateError is enabled so that
// unique violations surface as gorm.ErrDuplicatedKey on both drivers. Statement
// logs go to logger; a nil logger discards them.
func Open(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; also keeps shared in-memory databases alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// ErrLoanIndexConflict is returned by Migrate when stored loans already break
// the requested one-loan-per-(book, user) rule.
var ErrLoanIndexConflict = errors.New("existing loans conflict with loan index")

// Migrate creates the tables and the unique index guarding the
// one-loan-per-(book, user) rule. When blockReturned is false the index only
// covers loans without a returned date. Rows that would violate the new index
// leave the current one in place and yield ErrLoanIndexConflict.
func Migrate(db *gorm.DB, blockReturned bool) error {
	if err := db.AutoMigrate(&models.Book{}, &models.User{}, &models.Loan{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	var pairs []struct {
		BookID uint
		UserID uint
	}
	dup := db.Table("loans").Select("book_id, user_id").Group("book_id, user_id").Having("COUNT(*) > 1")
	if !blockReturned {
		dup = dup.Where("returned_date IS NULL")
	}
	if err := dup.Scan(&pairs).Error; err != nil {
		return fmt.Errorf("failed to check loan index: %w", err)
	}
	if len(pairs) > 0 {
		return fmt.Errorf("%w: %d (book, user) pairs hold more than one loan "+
			"(first: book %d, user %d); delete the extra loans or unset LOANS_BLOCK_RETURNED",
			ErrLoanIndexConflict, len(pairs), pairs[0].BookID, pairs[0].UserID)
	}

	if err := db.Exec("DROP INDEX IF EXISTS ux_loans_book_user").Error; err != nil {
		return fmt.Errorf("failed to drop loan index: %w", err)
	}
	stmt := "CREATE UNIQUE INDEX ux_loans_book_user ON loans (book_id, user_id)"
	if !blockReturned {
		stmt += " WHERE returned_date IS NULL"
	}
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create loan index: %w", err)
	}
	return nil
}
