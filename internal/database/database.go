package database

import (
	"fmt"
	"log"

	"outsourcing-market/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the database. driver is postgres or
// sqlite; for sqlite dsn is a file path.
func Connect(driver, dsn string) error {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite allows one writer; serialize through a single connection.
		sqlDB, err := DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Printf("Database connection established successfully (%s)", driver)
	return nil
}

// ModelGroups lists every model, grouped the way they are migrated.
func ModelGroups() map[string][]interface{} {
	return map[string][]interface{}{
		"core": {
			&models.User{},
			&models.AdminUser{},
			&models.AdminLog{},
		},
		"work_requests": {
			&models.WorkRequest{},
			&models.Proposal{},
			&models.WorkRequestReview{},
		},
		"commerce": {
			&models.Payment{},
			&models.Coupon{},
			&models.UserCoupon{},
			&models.ServiceOrder{},
		},
		"ledger": {
			&models.Settlement{},
			&models.CashTransaction{},
			&models.Withdrawal{},
		},
		"notifications": {
			&models.Notification{},
		},
	}
}

var migrationOrder = []string{"core", "work_requests", "commerce", "ledger", "notifications"}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs the migrations against db. A failing model is logged and the
// remaining models are still migrated; the first error is returned.
func Migrate(db *gorm.DB) error {
	groups := ModelGroups()
	var firstErr error
	for _, name := range migrationOrder {
		for _, model := range groups[name] {
			if err := db.AutoMigrate(model); err != nil {
				log.Printf("Warning: migration issue for %T: %v", model, err)
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to migrate %T: %w", model, err)
				}
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
