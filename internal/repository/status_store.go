package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDeliveryNotFound is returned by Get for an unknown request id.
var ErrDeliveryNotFound = errors.New("delivery not found")

// DeliveryStatus is one row per notification request.
type DeliveryStatus struct {
	RequestID string    `gorm:"primaryKey" json:"requestId"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Provider  string    `json:"provider"`
	MessageID string    `json:"messageId,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

type StatusStore struct {
	db        *gorm.DB
	tableName string
}

// NewStatusStore migrates the status table and returns a store for it.
func NewStatusStore(db *gorm.DB, tableName string) (*StatusStore, error) {
	if tableName == "" {
		tableName = "push_deliveries"
	}
	if err := db.Table(tableName).AutoMigrate(&DeliveryStatus{}); err != nil {
		return nil, err
	}
	return &StatusStore{
		db:        db,
		tableName: tableName,
	}, nil
}

// UpdateStatus upserts the row for ds.RequestID.
func (s *StatusStore) UpdateStatus(ctx context.Context, ds DeliveryStatus) error {
	ds.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at", "provider", "message_id", "error_kind", "detail"}),
		}).Create(&ds).Error
}

// Get loads the row for requestID.
func (s *StatusStore) Get(ctx context.Context, requestID string) (*DeliveryStatus, error) {
	var ds DeliveryStatus
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("request_id = ?", requestID).
		First(&ds).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}
