package storage

import (
	. "linechat/pkg/chat"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DBPath = "linechat.db"
	Memory = ":memory:"
)

// Connect opens the sqlite database at path and migrates the credential
// and audit tables. An empty path means DBPath.
func Connect(path string) (*gorm.DB, error) {
	if path == "" {
		path = DBPath
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every pooled connection to ":memory:" would be its own empty database,
	// and sqlite serialises writers anyway.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&User{},
		&SessionEvent{},
	)

	if err != nil {
		return nil, err
	}

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
