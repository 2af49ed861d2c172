package routing

import (
	"sort"

	"kitchenprint/internal/models"
)

// Destination is one (printer, role) pair with the items that printer prints.
type Destination struct {
	Printer *models.Printer
	Role    string
	Items   []models.OrderItem
}

// Options tune routing policy.
type Options struct {
	// FallbackAllPrinters routes an item no printer serves to every active non-receipt printer.
	FallbackAllPrinters bool
}

// Plan is the routing result for one order. Unrouted holds the items no kitchen ticket carries.
type Plan struct {
	Destinations []Destination
	Unrouted     []models.OrderItem
}

type Resolver struct {
	opts Options
}

func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve computes the destinations for an order given the printers of the order's tenant.
// Printers of other tenants or inactive printers are ignored. An empty result is valid.
func (r *Resolver) Resolve(tenantID int64, order *models.Order, printers []*models.Printer) []Destination {
	return r.Plan(tenantID, order, printers).Destinations
}

// Plan is Resolve plus the items that ended up on no kitchen ticket.
func (r *Resolver) Plan(tenantID int64, order *models.Order, printers []*models.Printer) Plan {
	candidates := make([]*models.Printer, 0, len(printers))
	for _, p := range printers {
		if p == nil || !p.IsActive || p.TenantID != tenantID {
			continue
		}
		if order.RestaurantID != 0 && p.RestaurantID != 0 && p.RestaurantID != order.RestaurantID {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	var plan Plan
	if receipt := receiptPrinter(candidates); receipt != nil {
		plan.Destinations = append(plan.Destinations, Destination{Printer: receipt, Role: models.RoleReceipt, Items: order.Items})
	}
	if len(order.Items) == 0 {
		return plan
	}

	kitchen, unrouted := r.kitchenDestinations(order, candidates)
	plan.Destinations = append(plan.Destinations, kitchen...)
	plan.Unrouted = unrouted
	return plan
}

func receiptPrinter(printers []*models.Printer) *models.Printer {
	for _, p := range printers {
		if p.IsReceipt {
			return p
		}
	}
	return nil
}

// kitchenDestinations routes item by item so an unmatched item never hides behind a matched one.
// Each printer's items keep the order's item order.
func (r *Resolver) kitchenDestinations(order *models.Order, printers []*models.Printer) ([]Destination, []models.OrderItem) {
	var kitchen, fallback []*models.Printer
	for _, p := range printers {
		if !p.IsReceipt {
			fallback = append(fallback, p)
		}
		// A receipt printer joins kitchen routing only through explicit categories.
		if p.IsReceipt && p.IsCatchAll() {
			continue
		}
		kitchen = append(kitchen, p)
	}

	items := make(map[int64][]models.OrderItem)
	var unrouted []models.OrderItem
	for _, item := range order.Items {
		matched := false
		for _, p := range kitchen {
			if p.Serves(item.CategoryID) {
				items[p.ID] = append(items[p.ID], item)
				matched = true
			}
		}
		if matched {
			continue
		}
		if !r.opts.FallbackAllPrinters || len(fallback) == 0 {
			unrouted = append(unrouted, item)
			continue
		}
		for _, p := range fallback {
			items[p.ID] = append(items[p.ID], item)
		}
	}

	var out []Destination
	for _, p := range printers {
		if len(items[p.ID]) == 0 {
			continue
		}
		out = append(out, Destination{Printer: p, Role: models.RoleKitchenTicket, Items: items[p.ID]})
	}
	return out, unrouted
}
