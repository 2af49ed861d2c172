package ticket

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"kitchenprint/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const saladsCategory int64 = 7

func TestFrame_ByteExact(t *testing.T) {
	order := &models.Order{
		TenantID: 1,
		OrderID:  42,
		Items:    []models.OrderItem{{CategoryID: saladsCategory, Name: "X", Qty: 2, Price: 10}},
	}
	r := NewRenderer(Labels{})
	text := r.Render(order, models.RoleKitchenTicket, order.Items, 80)
	frame := Frame(text)

	want := []byte{0x1B, 0x40, 0x1B, 0x74, 0x24}
	want = append(want, []byte(text)...)
	want = append(want, 0x0A, 0x0A, 0x0A, 0x0A, 0x1D, 0x56, 0x00)
	assert.Equal(t, want, frame)
	assert.Equal(t, len(text)+12, len(frame))
	assert.Contains(t, text, "2 x X")
}

func TestFrame_NonASCII(t *testing.T) {
	text := "۲ x سالاد فصل\n"
	frame := Frame(text)

	require.True(t, bytes.HasPrefix(frame, []byte{0x1B, 0x40, 0x1B, 0x74, 0x24}))
	require.True(t, bytes.HasSuffix(frame, []byte{0x0A, 0x0A, 0x0A, 0x0A, 0x1D, 0x56, 0x00}))
	assert.Equal(t, []byte(text), frame[5:len(frame)-7])
	assert.Equal(t, FrameOverhead, len(frame)-len(text))
}

func TestRender_Kitchen(t *testing.T) {
	order := &models.Order{
		OrderID: 42,
		Items: []models.OrderItem{
			{CategoryID: saladsCategory, Name: "X", Qty: 2, Price: 10},
		},
	}
	r := NewRenderer(Labels{})
	got := r.Render(order, models.RoleKitchenTicket, order.Items, 58)

	dash := strings.Repeat("-", 32)
	want := strings.Repeat(" ", 12) + "KITCHEN\n" +
		"Order #42\n" +
		dash + "\n" +
		"2 x X\n" +
		dash + "\n"
	assert.Equal(t, want, got)
}

func TestRender_KitchenDetails(t *testing.T) {
	order := &models.Order{
		OrderID:   9,
		Number:    "B-3",
		Table:     "12",
		Note:      "allergy: nuts",
		CreatedAt: time.Date(2025, 3, 1, 19, 5, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{CategoryID: 1, Name: "Burger", Qty: 1, Adjustments: []string{"no onion", "extra cheese"}},
		},
	}
	got := NewRenderer(Labels{Kitchen: "آشپزخانه"}).Render(order, models.RoleKitchenTicket, order.Items, 80)

	assert.Contains(t, got, "آشپزخانه\n")
	assert.Contains(t, got, "Order #B-3\n")
	assert.Contains(t, got, "Table: 12\n")
	assert.Contains(t, got, "2025-03-01 19:05\n")
	assert.Contains(t, got, "   + no onion\n   + extra cheese\n")
	assert.True(t, strings.HasSuffix(got, "Note: allergy: nuts\n"))
}

func TestRender_Receipt(t *testing.T) {
	order := &models.Order{
		OrderID: 5,
		Items: []models.OrderItem{
			{CategoryID: 1, Name: "Soup", Qty: 2, Price: 4.5},
			{CategoryID: 2, Name: "Tea", Qty: 1, Price: 2},
		},
	}
	got := NewRenderer(Labels{}).Render(order, models.RoleReceipt, nil, 58)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")

	assert.Equal(t, "2 x Soup"+strings.Repeat(" ", 32-8-1)+"9", lines[3])
	assert.Equal(t, "1 x Tea"+strings.Repeat(" ", 32-7-1)+"2", lines[4])
	assert.Equal(t, "Total"+strings.Repeat(" ", 32-5-2)+"11", lines[6])
	for _, line := range lines {
		assert.LessOrEqual(t, len([]rune(line)), 32)
	}
}

func TestRender_Deterministic(t *testing.T) {
	order := &models.Order{OrderID: 1, Items: []models.OrderItem{{Name: "A", Qty: 1, Price: 1}}}
	r := NewRenderer(Labels{})
	assert.Equal(t, r.Render(order, models.RoleReceipt, nil, 80), r.Render(order, models.RoleReceipt, nil, 80))
}

func TestColumns_Overflow(t *testing.T) {
	got := columns(strings.Repeat("a", 30), "100", 32)
	assert.Equal(t, strings.Repeat("a", 30)+"\n"+strings.Repeat(" ", 29)+"100\n", got)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "10", formatMoney(10))
	assert.Equal(t, "10.50", formatMoney(10.5))
	assert.Equal(t, "0", formatMoney(0))
}
