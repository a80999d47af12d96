package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boukath/cina/services/push_service/internal/testutil"
)

func TestStatusStoreUpsert(t *testing.T) {
	store, err := NewStatusStore(testutil.SQLiteDB(t), "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.UpdateStatus(ctx, DeliveryStatus{RequestID: "req-1", Status: "processing"}))
	require.NoError(t, store.UpdateStatus(ctx, DeliveryStatus{
		RequestID: "req-1",
		Status:    "delivered",
		Provider:  "fcm",
		MessageID: "projects/proj-1/messages/1",
	}))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "delivered", got.Status)
	assert.Equal(t, "fcm", got.Provider)
	assert.Equal(t, "projects/proj-1/messages/1", got.MessageID)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStatusStoreGetMissing(t *testing.T) {
	store, err := NewStatusStore(testutil.SQLiteDB(t), "deliveries")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
}
