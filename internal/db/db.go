package db

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mgmonitor/internal/config"
)

type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

// Open connects using the configured driver. sqlite is the default for the
// local single-user monitor; postgres is kept for hosted deployments.
func Open(cfg config.DBConfig) (*DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{Gorm: gdb, SQL: sqldb}, nil
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

func Ping(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Ping()
}
