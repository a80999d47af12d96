package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boukath/cina/services/push_service/internal/testutil"
)

func seedSettings(t *testing.T, db *gorm.DB, rows ...Setting) {
	t.Helper()
	require.NoError(t, db.Table("settings").AutoMigrate(&Setting{}))
	for _, row := range rows {
		require.NoError(t, db.Table("settings").Create(&row).Error)
	}
}

func TestSettingsStoreGet(t *testing.T) {
	db := testutil.SQLiteDB(t)
	seedSettings(t, db, Setting{Key: "admin_fcm_token", Value: "tok-abc"})
	store := NewSettingsStore(db, "")
	ctx := context.Background()

	value, ok, err := store.Get(ctx, "admin_fcm_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-abc", value)

	_, ok, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsStoreClear(t *testing.T) {
	db := testutil.SQLiteDB(t)
	seedSettings(t, db, Setting{Key: "admin_fcm_token", Value: "tok-abc"})
	store := NewSettingsStore(db, "settings")
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx, "admin_fcm_token"))
	_, ok, err := store.Get(ctx, "admin_fcm_token")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Clear(ctx, "missing"))
}
