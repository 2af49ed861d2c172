package database

import (
	"context"
	"testing"

	"kitchenprint/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	grill := createTestPrinter(t, db, &models.Printer{TenantID: 1, Name: "Grill", IPAddress: "10.0.0.5", CategoryIDs: []int64{8, 3, 8}})
	bar := createTestPrinter(t, db, &models.Printer{TenantID: 1, Name: "Bar", Type: models.PrinterTypeUSB, PaperWidth: 58})
	createTestPrinter(t, db, &models.Printer{TenantID: 2, Name: "Other"})

	t.Run("Defaults", func(t *testing.T) {
		got, err := db.GetPrinter(ctx, 1, grill.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DefaultPrinterPort, got.Port)
		assert.Equal(t, models.DefaultPaperWidth, got.PaperWidth)
		assert.Equal(t, []int64{3, 8}, got.CategoryIDs)
		assert.Nil(t, got.DeviceID)

		usb, err := db.GetPrinter(ctx, 1, bar.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, usb.Port)
		assert.Equal(t, 58, usb.PaperWidth)
		assert.True(t, usb.IsCatchAll())
	})

	t.Run("TenantScoped", func(t *testing.T) {
		_, err := db.GetPrinter(ctx, 2, grill.ID)
		assert.ErrorIs(t, err, ErrPrinterNotFound)

		printers, err := db.ListPrinters(ctx, 1, true)
		require.NoError(t, err)
		assert.Len(t, printers, 2)
	})

	t.Run("Categories", func(t *testing.T) {
		require.NoError(t, db.SetPrinterCategories(ctx, 1, bar.ID, []int64{9}))
		got, err := db.GetPrinter(ctx, 1, bar.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{9}, got.CategoryIDs)

		require.NoError(t, db.SetPrinterCategories(ctx, 1, bar.ID, nil))
		got, err = db.GetPrinter(ctx, 1, bar.ID)
		require.NoError(t, err)
		assert.Empty(t, got.CategoryIDs)

		assert.ErrorIs(t, db.SetPrinterCategories(ctx, 2, bar.ID, []int64{1}), ErrPrinterNotFound)
	})

	t.Run("Active", func(t *testing.T) {
		require.NoError(t, db.SetPrinterActive(ctx, 1, bar.ID, false))
		active, err := db.ListPrinters(ctx, 1, true)
		require.NoError(t, err)
		assert.Len(t, active, 1)

		all, err := db.ListPrinters(ctx, 1, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("BindDevice", func(t *testing.T) {
		device := createTestDevice(t, db, 1, "hash-bind")
		require.NoError(t, db.BindPrinterDevice(ctx, 1, grill.ID, &device.ID))

		got, err := db.GetPrinter(ctx, 1, grill.ID)
		require.NoError(t, err)
		require.NotNil(t, got.DeviceID)
		assert.Equal(t, device.ID, *got.DeviceID)
		assert.True(t, got.AgentMediated())

		foreign := createTestDevice(t, db, 2, "hash-foreign")
		assert.ErrorIs(t, db.BindPrinterDevice(ctx, 1, grill.ID, &foreign.ID), ErrDeviceNotFound)

		require.NoError(t, db.BindPrinterDevice(ctx, 1, grill.ID, nil))
		got, err = db.GetPrinter(ctx, 1, grill.ID)
		require.NoError(t, err)
		assert.Nil(t, got.DeviceID)
	})

	t.Run("BindDeviceRole", func(t *testing.T) {
		receiptOnly := createTestPrinter(t, db, &models.Printer{TenantID: 1, Name: "Till", IsReceipt: true})
		receiptAndBar := createTestPrinter(t, db, &models.Printer{TenantID: 1, Name: "Bar", IsReceipt: true, CategoryIDs: []int64{4}})

		receiptDevice := &models.PrintDevice{TenantID: 1, Name: "till-pc", TokenHash: "hash-receipt", Role: models.RoleReceipt, IsActive: true}
		require.NoError(t, db.CreateDevice(ctx, receiptDevice))
		kitchenDevice := &models.PrintDevice{TenantID: 1, Name: "line-pc", TokenHash: "hash-kitchen", Role: models.RoleKitchenTicket, IsActive: true}
		require.NoError(t, db.CreateDevice(ctx, kitchenDevice))

		require.NoError(t, db.BindPrinterDevice(ctx, 1, receiptOnly.ID, &receiptDevice.ID))
		require.NoError(t, db.BindPrinterDevice(ctx, 1, grill.ID, &kitchenDevice.ID))

		assert.ErrorIs(t, db.BindPrinterDevice(ctx, 1, receiptAndBar.ID, &receiptDevice.ID), ErrRoleMismatch)
		assert.ErrorIs(t, db.BindPrinterDevice(ctx, 1, receiptAndBar.ID, &kitchenDevice.ID), ErrRoleMismatch)
		assert.ErrorIs(t, db.BindPrinterDevice(ctx, 1, receiptOnly.ID, &kitchenDevice.ID), ErrRoleMismatch)
		assert.ErrorIs(t, db.BindPrinterDevice(ctx, 1, 9999, &kitchenDevice.ID), ErrPrinterNotFound)

		got, err := db.GetPrinter(ctx, 1, receiptAndBar.ID)
		require.NoError(t, err)
		assert.Nil(t, got.DeviceID)
	})

	t.Run("InvalidType", func(t *testing.T) {
		err := db.CreatePrinter(ctx, &models.Printer{TenantID: 1, Name: "Bad", Type: "serial"})
		assert.Error(t, err)
	})
}
