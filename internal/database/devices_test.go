package database

import (
	"context"
	"testing"
	"time"

	"kitchenprint/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	device := createTestDevice(t, db, 1, "hash-1")
	createTestDevice(t, db, 2, "hash-2")

	t.Run("LookupByHash", func(t *testing.T) {
		got, err := db.GetDeviceByTokenHash(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, device.ID, got.ID)
		assert.Nil(t, got.LastSeenAt)

		_, err = db.GetDeviceByTokenHash(ctx, "missing")
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("DuplicateHash", func(t *testing.T) {
		err := db.CreateDevice(ctx, &models.PrintDevice{TenantID: 1, Name: "dup", TokenHash: "hash-1", IsActive: true})
		assert.Error(t, err)
		assert.Error(t, db.CreateDevice(ctx, &models.PrintDevice{TenantID: 1, Name: "nohash"}))
	})

	t.Run("Touch", func(t *testing.T) {
		seen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, db.TouchDevice(ctx, device.ID, seen))

		got, err := db.GetDevice(ctx, 1, device.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastSeenAt)
		assert.True(t, seen.Equal(*got.LastSeenAt))
	})

	t.Run("Status", func(t *testing.T) {
		require.NoError(t, db.SetDeviceError(ctx, device.ID, "paper out"))
		require.NoError(t, db.SetDeviceVersion(ctx, device.ID, "1.2.0"))

		got, err := db.GetDevice(ctx, 1, device.ID)
		require.NoError(t, err)
		assert.Equal(t, "paper out", got.LastError)
		assert.Equal(t, "1.2.0", got.AgentVersion)
	})

	t.Run("ListAndDeactivate", func(t *testing.T) {
		devices, err := db.ListDevices(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, devices, 1)

		all, err := db.ListDevices(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, db.SetDeviceActive(ctx, 1, device.ID, false))
		all, err = db.ListDevices(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		assert.ErrorIs(t, db.SetDeviceActive(ctx, 2, device.ID, true), ErrDeviceNotFound)
		_, err = db.GetDevice(ctx, 2, device.ID)
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})
}
