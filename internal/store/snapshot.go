package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spatialchat/chatserver/internal/common"
	"github.com/spatialchat/chatserver/internal/doc"
)

// RoomSnapshot is one persisted room document, newest write wins.
type RoomSnapshot struct {
	ID        string    `gorm:"primaryKey;size:26"` // ULID length
	RoomID    string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RoomSnapshot) TableName() string { return "room_snapshots" }

type SnapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, roomID string, snap doc.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	id, err := common.NewULID()
	if err != nil {
		return err
	}

	row := RoomSnapshot{
		ID:      id,
		RoomID:  roomID,
		Payload: string(payload),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *SnapshotRepo) LoadSnapshot(ctx context.Context, roomID string) (doc.Snapshot, bool, error) {
	var row RoomSnapshot
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return doc.Snapshot{}, false, nil
		}
		return doc.Snapshot{}, false, err
	}

	var snap doc.Snapshot
	if err := json.Unmarshal([]byte(row.Payload), &snap); err != nil {
		return doc.Snapshot{}, false, err
	}
	return snap, true, nil
}
