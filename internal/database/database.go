package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/entities"
)

type Database struct {
	DB     *gorm.DB
	Driver config.DatabaseDriver
}

func NewDatabase(cfg config.Database) (*Database, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	database := &Database{DB: db, Driver: cfg.Driver}
	if err := database.seedPermissions(); err != nil {
		return nil, fmt.Errorf("failed to seed permissions: %w", err)
	}

	log.Printf("Database initialized successfully (%s)", describe(cfg))

	return database, nil
}

func openDialector(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		if cfg.Path == "" {
			return nil, errors.New("database path is required for sqlite")
		}
		return sqlite.Open(sqliteDSN(cfg.Path)), nil
	case config.DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("database DSN is required for postgres")
		}
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// sqliteDSN turns on foreign key enforcement for every pooled connection.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_foreign_keys") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_foreign_keys=on"
	}
	return path + "?_foreign_keys=on"
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	default:
		return logger.Info
	}
}

func describe(cfg config.Database) string {
	if cfg.Driver == config.DriverPostgres {
		return "postgres"
	}
	return "sqlite at " + cfg.Path
}

// Migrate creates or updates every catalog table.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.Permission{},
		&entities.User{},
		&entities.Genre{},
		&entities.Language{},
		&entities.Author{},
		&entities.Book{},
		&entities.BookInstance{},
		&entities.Review{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) seedPermissions() error {
	for _, perm := range entities.DefaultPermissions {
		var existing entities.Permission
		result := d.DB.Where("codename = ?", perm.Codename).First(&existing)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			perm := perm
			if err := d.DB.Create(&perm).Error; err != nil {
				return fmt.Errorf("failed to create permission %s: %w", perm.Codename, err)
			}
			log.Printf("Created permission: %s", perm.Codename)
		} else if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// Translate maps gorm errors onto the catalog sentinels so callers can
// branch on them without knowing the driver.
func Translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, catalog.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, catalog.ErrDuplicateName)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", what, catalog.ErrReferentialRestrict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}
