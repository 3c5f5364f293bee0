// Package store persists room document snapshots. The synchronized
// document itself lives in memory; snapshots are how rooms survive a
// restart.
package store

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the snapshot database. A DSN containing a tcp host
// selects MySQL, anything else is treated as a sqlite path.
func Connect(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	if strings.Contains(dsn, "@tcp(") {
		db, err = gorm.Open(mysql.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&RoomSnapshot{}); err != nil {
		return nil, err
	}
	return db, nil
}
