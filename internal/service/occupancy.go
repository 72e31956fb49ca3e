package service

import "github.com/tabletrack/api/internal/model"

// OccupiedTables returns the set of normalized (name, floor) pairs that
// have at least one active order. Occupancy is always derived from the
// active orders, never stored.
func OccupiedTables(orders []model.ActiveOrder) map[model.TableKey]struct{} {
	occupied := make(map[model.TableKey]struct{}, len(orders))
	for _, o := range orders {
		occupied[o.Key()] = struct{}{}
	}
	return occupied
}

// OccupiedCount returns the number of occupied tables.
func OccupiedCount(orders []model.ActiveOrder) int {
	return len(OccupiedTables(orders))
}

// VacantCount returns the vacant-table count shown on station badges.
// The table total is capped at badgeCap so the badge cannot overflow;
// the result never goes below zero.
func VacantCount(tables []model.Table, orders []model.ActiveOrder, badgeCap int) int {
	total := len(tables)
	if badgeCap < total {
		total = badgeCap
	}
	vacant := total - OccupiedCount(orders)
	if vacant < 0 {
		return 0
	}
	return vacant
}
