package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/model"
	"github.com/tabletrack/api/internal/service"
)

type TableHandler struct {
	branches BranchResolver
	badgeCap int
	log      *logrus.Entry
}

func NewTableHandler(branches BranchResolver, badgeCap int, log *logrus.Entry) *TableHandler {
	return &TableHandler{branches: branches, badgeCap: badgeCap, log: log}
}

func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/occupancy", h.Occupancy)
}

type tableResponse struct {
	model.Table
	Occupied bool `json:"occupied"`
}

type occupancyResponse struct {
	Occupied int `json:"occupied"`
	Vacant   int `json:"vacant"`
	Total    int `json:"total"`
}

// List handles GET /branches/{bid}/tables.
// Each table carries its live occupancy flag.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	b, err := h.branches.Branch(chi.URLParam(r, "bid"))
	if err != nil {
		writeError(w, http.StatusNotFound, "branch not found")
		return
	}

	tables := b.Tables.Get()
	occupied := service.OccupiedTables(b.Active.Get())

	out := make([]tableResponse, len(tables))
	for i, t := range tables {
		_, busy := occupied[t.Key()]
		out[i] = tableResponse{Table: t, Occupied: busy}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": out})
}

// Occupancy handles GET /branches/{bid}/tables/occupancy.
func (h *TableHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	b, err := h.branches.Branch(chi.URLParam(r, "bid"))
	if err != nil {
		writeError(w, http.StatusNotFound, "branch not found")
		return
	}

	tables := b.Tables.Get()
	orders := b.Active.Get()
	writeJSON(w, http.StatusOK, occupancyResponse{
		Occupied: service.OccupiedCount(orders),
		Vacant:   service.VacantCount(tables, orders, h.badgeCap),
		Total:    len(tables),
	})
}
