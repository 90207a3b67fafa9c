package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cms0/internal/config"
	"cms0/internal/models"
	console "cms0/internal/utils/logger"
)

var DB *gorm.DB
var log = console.New("DB")

func Connect(cfg *config.Config) error {
	dsn := cfg.Database.DSN()

	log.Info("Connecting to database %s@%s:%d/%s...", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	maxRetries := 5
	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:                                   logger.Default.LogMode(logger.Warn),
			DisableForeignKeyConstraintWhenMigrating: true,
			PrepareStmt:                              true,
			AllowGlobalUpdate:                        false,
		})
		if err == nil {
			log.Success("Connected to database")

			sqlDB, err := DB.DB()
			if err != nil {
				return log.Error("Failed to get underlying *sql.DB instance", err)
			}

			sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
			sqlDB.SetConnMaxLifetime(time.Hour)
			sqlDB.SetConnMaxIdleTime(time.Minute * 30)

			if err := runMigrations(); err != nil {
				return log.Error("Failed to run migrations", err)
			}

			log.Success("Migrations completed")

			return nil
		}
		log.Warn("Failed to connect to database (attempt %d/%d): %v", i+1, maxRetries, err)
		time.Sleep(time.Second * 5)
	}
	return log.Error("Failed to connect to database", fmt.Errorf("gave up after %d attempts: %w", maxRetries, err))
}

func runMigrations() error {
	log.Info("Running migrations...")

	// Join tables carry their own structs so gorm must know about them before migrating owners.
	if err := DB.SetupJoinTable(&models.Role{}, "Permissions", &models.RolePermission{}); err != nil {
		return err
	}
	if err := DB.SetupJoinTable(&models.User{}, "Affiliates", &models.UserAffiliate{}); err != nil {
		return err
	}
	if err := DB.SetupJoinTable(&models.Affiliate{}, "Users", &models.UserAffiliate{}); err != nil {
		return err
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			// RBAC
			&models.Permission{},
			&models.Role{},
			&models.RolePermission{},

			// Tenancy and users
			&models.Affiliate{},
			&models.AffiliateMember{},
			&models.User{},
			&models.UserAffiliate{},
			&models.AuthTransaction{},

			// Content
			&models.Story{},
			&models.Page{},
			&models.Module{},
			&models.Category{},
			&models.Menu{},
			&models.File{},
		)
	})
}

func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return DB
}
