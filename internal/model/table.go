package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TableKey is the natural key associating orders with physical tables.
// Table IDs can be duplicated across imports, so orders key on the
// normalized name+floor pair instead of the raw id.
type TableKey struct {
	Name  string
	Floor string
}

// NewTableKey normalizes a name+floor pair (trimmed, case-folded).
func NewTableKey(name, floor string) TableKey {
	return TableKey{
		Name:  strings.ToLower(strings.TrimSpace(name)),
		Floor: strings.ToLower(strings.TrimSpace(floor)),
	}
}

// Reservation is an optional hold on a table.
type Reservation struct {
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	GuestCount int       `json:"guest_count,omitempty"`
	Time       time.Time `json:"time"`
}

// Table is a physical table on a floor. ActivePin is a short-lived access
// PIN handed to guests for self-ordering; payment confirmation clears it.
type Table struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Floor       string       `json:"floor"`
	Reservation *Reservation `json:"reservation,omitempty"`
	ActivePin   string       `json:"active_pin,omitempty"`
}

// Key returns the table's normalized natural key.
func (t Table) Key() TableKey {
	return NewTableKey(t.Name, t.Floor)
}

// Branch is a tenant/restaurant-location partition of all data.
type Branch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PrinterConfig points at a kitchen printer service endpoint.
type PrinterConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// BranchSettings is the branch configuration read at order time. TaxRate
// is a fraction (0.1 = 10%) and is always taken from the current value,
// never from a client-cached one.
type BranchSettings struct {
	TaxRate decimal.Decimal `json:"tax_rate"`
	Printer *PrinterConfig  `json:"printer,omitempty"`
}

// User is a staff account stored in the global users collection.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	BranchID     string `json:"branch_id"`
}
