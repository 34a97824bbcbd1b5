// Package local is the single-machine backend: every collection is one row in a
// SQLite table holding the serialized collection.
package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/PeacockIllustrated/project-manager/internal/store"
)

type collectionRow struct {
	Name      string `gorm:"primaryKey"`
	Payload   string `gorm:"not null"`
	UpdatedAt time.Time
}

func (collectionRow) TableName() string {
	return "collections"
}

// Store reads and replaces whole collections. A collection without a row has never
// been written.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return NewStore(db)
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&collectionRow{}); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetAll returns the stored collection, or an empty list when it was never written.
func (s *Store) GetAll(ctx context.Context, collection store.Collection) ([]store.Record, error) {
	var row collectionRow
	err := s.db.WithContext(ctx).Where("name = ?", string(collection)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []store.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return store.RecordsFromArray([]byte(row.Payload))
}

func (s *Store) Exists(ctx context.Context, collection store.Collection) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&collectionRow{}).Where("name = ?", string(collection)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check %s: %w", collection, err)
	}
	return count > 0, nil
}

func (s *Store) SaveAll(ctx context.Context, collection store.Collection, records []store.Record) error {
	return saveAll(s.db.WithContext(ctx), collection, records)
}

// SaveMany replaces several collections in one transaction.
func (s *Store) SaveMany(ctx context.Context, collections map[store.Collection][]store.Record) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for collection, records := range collections {
			if err := saveAll(tx, collection, records); err != nil {
				return err
			}
		}
		return nil
	})
}

// InitializeIfAbsent writes defaults only when the collection has never been written.
// It reports whether it seeded.
func (s *Store) InitializeIfAbsent(ctx context.Context, collection store.Collection, defaults []store.Record) (bool, error) {
	payload, err := store.RecordsToArray(defaults)
	if err != nil {
		return false, err
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&collectionRow{Name: string(collection), Payload: string(payload), UpdatedAt: time.Now()})
	if result.Error != nil {
		return false, fmt.Errorf("seed %s: %w", collection, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Clear forgets every collection.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&collectionRow{}).Error; err != nil {
		return fmt.Errorf("clear local store: %w", err)
	}
	return nil
}

func saveAll(db *gorm.DB, collection store.Collection, records []store.Record) error {
	payload, err := store.RecordsToArray(records)
	if err != nil {
		return err
	}
	row := collectionRow{Name: string(collection), Payload: string(payload), UpdatedAt: time.Now()}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return nil
}
