package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/PeacockIllustrated/project-manager/internal/store"
)

type snapshotRow struct {
	Name      string `gorm:"primaryKey"`
	Payload   string `gorm:"not null"`
	UpdatedAt time.Time
}

func (snapshotRow) TableName() string {
	return "remote_snapshots"
}

type outboxRow struct {
	Seq        int64  `gorm:"primaryKey;autoIncrement"`
	Kind       string `gorm:"not null"`
	Collection string
	RecordID   string
	Body       string
	Refs       string
	CreatedAt  time.Time
}

func (outboxRow) TableName() string {
	return "remote_outbox"
}

// Cache is the adapter's on-disk state: the last snapshot of every collection and the
// writes still waiting for the database.
type Cache struct {
	db *gorm.DB
}

func OpenCache(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open remote cache: %w", err)
	}
	return NewCache(db)
}

func NewCache(db *gorm.DB) (*Cache, error) {
	if err := db.AutoMigrate(&snapshotRow{}, &outboxRow{}); err != nil {
		return nil, fmt.Errorf("migrate remote cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Snapshots returns every cached collection. Collections never cached are absent.
func (c *Cache) Snapshots(ctx context.Context) (map[store.Collection][]store.Record, error) {
	var rows []snapshotRow
	if err := c.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read cached snapshots: %w", err)
	}
	out := make(map[store.Collection][]store.Record, len(rows))
	for _, row := range rows {
		collection := store.Collection(row.Name)
		if !collection.Valid() {
			continue
		}
		records, err := store.RecordsFromArray([]byte(row.Payload))
		if err != nil {
			return nil, fmt.Errorf("cached %s: %w", collection, err)
		}
		out[collection] = records
	}
	return out, nil
}

func (c *Cache) SaveSnapshot(ctx context.Context, collection store.Collection, records []store.Record) error {
	payload, err := store.RecordsToArray(records)
	if err != nil {
		return err
	}
	row := snapshotRow{Name: string(collection), Payload: string(payload), UpdatedAt: time.Now()}
	err = c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("cache %s: %w", collection, err)
	}
	return nil
}

// Enqueue stores op at the end of the outbox and returns its position.
func (c *Cache) Enqueue(ctx context.Context, op pendingOp) (int64, error) {
	refs, err := json.Marshal(op.refs)
	if err != nil {
		return 0, fmt.Errorf("encode queued refs: %w", err)
	}
	row := outboxRow{
		Kind:       op.kind.String(),
		Collection: string(op.collection),
		RecordID:   op.record.ID,
		Body:       string(op.record.Body),
		Refs:       string(refs),
		CreatedAt:  time.Now(),
	}
	if op.kind == opDelete {
		row.RecordID = op.id
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("queue %s: %w", op.kind, err)
	}
	return row.Seq, nil
}

// Pending returns the outbox in write order.
func (c *Cache) Pending(ctx context.Context) ([]pendingOp, error) {
	var rows []outboxRow
	if err := c.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read queued changes: %w", err)
	}
	ops := make([]pendingOp, 0, len(rows))
	for _, row := range rows {
		kind, err := parseOpKind(row.Kind)
		if err != nil {
			return nil, err
		}
		op := pendingOp{seq: row.Seq, kind: kind, collection: store.Collection(row.Collection)}
		switch kind {
		case opInsert, opReplace:
			op.record = store.Record{ID: row.RecordID, Body: json.RawMessage(row.Body)}
		case opDelete:
			op.id = row.RecordID
		case opDeleteBatch:
			if err := json.Unmarshal([]byte(row.Refs), &op.refs); err != nil {
				return nil, fmt.Errorf("decode queued refs %d: %w", row.Seq, err)
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (c *Cache) Dequeue(ctx context.Context, seq int64) error {
	if err := c.db.WithContext(ctx).Where("seq = ?", seq).Delete(&outboxRow{}).Error; err != nil {
		return fmt.Errorf("dequeue %d: %w", seq, err)
	}
	return nil
}
