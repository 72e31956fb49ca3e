package service

import (
	"testing"

	"github.com/tabletrack/api/internal/model"
)

func TestOccupiedTablesNormalizesKeys(t *testing.T) {
	orders := []model.ActiveOrder{
		{ID: "o1", TableName: "T1", Floor: "1"},
		{ID: "o2", TableName: " t1 ", Floor: "1"}, // same table, second order
		{ID: "o3", TableName: "T2", Floor: "1"},
	}
	occupied := OccupiedTables(orders)
	if len(occupied) != 2 {
		t.Fatalf("occupied = %d, want 2", len(occupied))
	}
	if _, ok := occupied[model.NewTableKey("T1", "1")]; !ok {
		t.Error("T1 not occupied")
	}
}

func TestOccupiedTablesSameNameDifferentFloor(t *testing.T) {
	orders := []model.ActiveOrder{
		{ID: "o1", TableName: "T1", Floor: "1"},
		{ID: "o2", TableName: "T1", Floor: "2"},
	}
	if got := OccupiedCount(orders); got != 2 {
		t.Errorf("occupied = %d, want 2", got)
	}
}

func TestVacantCount(t *testing.T) {
	tables := make([]model.Table, 5)
	for i := range tables {
		tables[i] = model.Table{Name: string(rune('A' + i)), Floor: "1"}
	}
	orders := []model.ActiveOrder{
		{TableName: "A", Floor: "1"},
		{TableName: "B", Floor: "1"},
	}

	if got := VacantCount(tables, orders, 99); got != 3 {
		t.Errorf("vacant = %d, want 3", got)
	}
	// cap limits the counted total
	if got := VacantCount(tables, orders, 3); got != 1 {
		t.Errorf("capped vacant = %d, want 1", got)
	}
	// never negative, even with stray orders on unknown tables
	orders = append(orders,
		model.ActiveOrder{TableName: "X", Floor: "9"},
		model.ActiveOrder{TableName: "Y", Floor: "9"},
	)
	if got := VacantCount(tables, orders, 3); got != 0 {
		t.Errorf("vacant = %d, want 0", got)
	}
}
