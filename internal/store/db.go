package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&SearchRecord{}, &CatalogSnapshot{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSearch records one executed price check.
func (d *Database) SaveSearch(record *SearchRecord) error {
	if record == nil {
		return errors.New("search record is nil")
	}
	record.League = strings.TrimSpace(record.League)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(record).Error
}

// RecentSearches returns the newest search records up to limit.
func (d *Database) RecentSearches(limit int) ([]SearchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []SearchRecord
	if err := d.gorm.Model(&SearchRecord{}).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountSearches returns the number of recorded searches.
func (d *Database) CountSearches() (int64, error) {
	var count int64
	if err := d.gorm.Model(&SearchRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveCatalogSnapshot keeps only the newest snapshot row; older rows are
// pruned so the table does not accumulate multi-megabyte bodies.
func (d *Database) SaveCatalogSnapshot(snapshot *CatalogSnapshot) error {
	if snapshot == nil {
		return errors.New("catalog snapshot is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CatalogSnapshot{}).Error; err != nil {
			return err
		}
		return tx.Create(snapshot).Error
	})
}

// LatestCatalogSnapshot returns the stored snapshot, or nil when none exists.
func (d *Database) LatestCatalogSnapshot() (*CatalogSnapshot, error) {
	var snapshot CatalogSnapshot
	err := d.gorm.Order("fetched_at DESC").First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
