package models

import "time"

type Printer struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	RestaurantID int64     `json:"restaurant_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"` // network, usb
	IPAddress    string    `json:"ip_address,omitempty"`
	Port         int       `json:"port,omitempty"`
	PaperWidth   int       `json:"paper_width"`
	IsReceipt    bool      `json:"is_receipt"`
	IsActive     bool      `json:"is_active"`
	DeviceID     *int64    `json:"device_id,omitempty"`
	CategoryIDs  []int64   `json:"category_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsCatchAll reports whether the printer has no category associations.
func (p *Printer) IsCatchAll() bool {
	return len(p.CategoryIDs) == 0
}

// AgentMediated reports whether jobs for this printer are delivered by a print device.
func (p *Printer) AgentMediated() bool {
	return p.DeviceID != nil
}

// Roles lists the job roles routing can assign to the printer.
func (p *Printer) Roles() []string {
	var roles []string
	if p.IsReceipt {
		roles = append(roles, RoleReceipt)
	}
	// A receipt printer takes kitchen tickets only for explicit categories.
	if !p.IsReceipt || !p.IsCatchAll() {
		roles = append(roles, RoleKitchenTicket)
	}
	return roles
}

// Serves reports whether the printer takes kitchen tickets for the category.
func (p *Printer) Serves(categoryID int64) bool {
	if p.IsCatchAll() {
		return true
	}
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}
