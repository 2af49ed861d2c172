package ticket

import (
	"strconv"
	"strings"

	"kitchenprint/internal/models"

	"github.com/mattn/go-runewidth"
)

// Labels are the fixed words printed on tickets.
type Labels struct {
	Kitchen string `yaml:"kitchen"`
	Receipt string `yaml:"receipt"`
	Order   string `yaml:"order"`
	Table   string `yaml:"table"`
	Total   string `yaml:"total"`
	Note    string `yaml:"note"`
}

func DefaultLabels() Labels {
	return Labels{
		Kitchen: "KITCHEN",
		Receipt: "RECEIPT",
		Order:   "Order #",
		Table:   "Table",
		Total:   "Total",
		Note:    "Note",
	}
}

func (l Labels) withDefaults() Labels {
	d := DefaultLabels()
	if l.Kitchen == "" {
		l.Kitchen = d.Kitchen
	}
	if l.Receipt == "" {
		l.Receipt = d.Receipt
	}
	if l.Order == "" {
		l.Order = d.Order
	}
	if l.Table == "" {
		l.Table = d.Table
	}
	if l.Total == "" {
		l.Total = d.Total
	}
	if l.Note == "" {
		l.Note = d.Note
	}
	return l
}

const timeLayout = "2006-01-02 15:04"

// Renderer turns an order snapshot into ticket text. It has no side effects.
type Renderer struct {
	labels Labels
}

func NewRenderer(labels Labels) *Renderer {
	return &Renderer{labels: labels.withDefaults()}
}

// ColumnsForPaper maps paper width in millimetres to printable columns.
func ColumnsForPaper(mm int) int {
	if mm > 0 && mm <= 58 {
		return 32
	}
	return 48
}

// Render produces the text for one destination. Kitchen tickets print only items,
// receipts print all items with prices and the order total.
func (r *Renderer) Render(order *models.Order, role string, items []models.OrderItem, paperWidth int) string {
	width := ColumnsForPaper(paperWidth)
	if role == models.RoleReceipt {
		return r.receipt(order, width)
	}
	return r.kitchen(order, items, width)
}

func (r *Renderer) kitchen(order *models.Order, items []models.OrderItem, width int) string {
	var b strings.Builder
	r.header(&b, order, r.labels.Kitchen, width)
	for _, item := range items {
		b.WriteString(strconv.Itoa(item.Qty) + " x " + item.Name + "\n")
		for _, adj := range item.Adjustments {
			b.WriteString("   + " + adj + "\n")
		}
	}
	b.WriteString(separator(width))
	r.note(&b, order)
	return b.String()
}

func (r *Renderer) receipt(order *models.Order, width int) string {
	var b strings.Builder
	r.header(&b, order, r.labels.Receipt, width)
	for _, item := range order.Items {
		left := strconv.Itoa(item.Qty) + " x " + item.Name
		b.WriteString(columns(left, formatMoney(float64(item.Qty)*item.Price), width))
		for _, adj := range item.Adjustments {
			b.WriteString("   + " + adj + "\n")
		}
	}
	b.WriteString(separator(width))
	b.WriteString(columns(r.labels.Total, formatMoney(order.Total()), width))
	r.note(&b, order)
	return b.String()
}

func (r *Renderer) header(b *strings.Builder, order *models.Order, title string, width int) {
	b.WriteString(center(title, width))
	b.WriteString(r.labels.Order + order.DisplayNumber() + "\n")
	if order.Table != "" {
		b.WriteString(r.labels.Table + ": " + order.Table + "\n")
	}
	if !order.CreatedAt.IsZero() {
		b.WriteString(order.CreatedAt.Format(timeLayout) + "\n")
	}
	b.WriteString(separator(width))
}

func (r *Renderer) note(b *strings.Builder, order *models.Order) {
	if strings.TrimSpace(order.Note) == "" {
		return
	}
	b.WriteString(r.labels.Note + ": " + order.Note + "\n")
}

func separator(width int) string {
	return strings.Repeat("-", width) + "\n"
}

func center(s string, width int) string {
	pad := (width - runewidth.StringWidth(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s + "\n"
}

// columns prints left and right on one line, or right-aligned on its own line when they don't fit.
func columns(left, right string, width int) string {
	gap := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if gap >= 1 {
		return left + strings.Repeat(" ", gap) + right + "\n"
	}
	pad := width - runewidth.StringWidth(right)
	if pad < 0 {
		pad = 0
	}
	return left + "\n" + strings.Repeat(" ", pad) + right + "\n"
}

func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	return strings.TrimSuffix(s, ".00")
}
