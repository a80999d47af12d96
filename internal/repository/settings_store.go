package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Setting is a row of the hosted key/value settings table.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// SettingsStore reads the operator settings table. The table belongs to the
// hosted platform, so it is never migrated from here.
type SettingsStore struct {
	db        *gorm.DB
	tableName string
}

func NewSettingsStore(db *gorm.DB, tableName string) *SettingsStore {
	if tableName == "" {
		tableName = "settings"
	}
	return &SettingsStore{
		db:        db,
		tableName: tableName,
	}
}

// Get returns the value for key; ok is false when the row is missing or empty.
func (s *SettingsStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	var row Setting
	err = s.db.WithContext(ctx).Table(s.tableName).
		Where(&Setting{Key: key}).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return "", false, err
	}
	return row.Value, row.Value != "", nil
}

// Clear blanks the value for key. Missing rows are not an error.
func (s *SettingsStore) Clear(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where(&Setting{Key: key}).
		Updates(map[string]interface{}{"value": "", "updated_at": time.Now()}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
