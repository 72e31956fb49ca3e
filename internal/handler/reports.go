package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ReportHandler struct {
	branches BranchResolver
	log      *logrus.Entry
}

func NewReportHandler(branches BranchResolver, log *logrus.Entry) *ReportHandler {
	return &ReportHandler{branches: branches, log: log}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales", h.SalesSummary)
}

type salesSummaryResponse struct {
	From          time.Time           `json:"from"`
	To            time.Time           `json:"to"`
	OrderCount    int                 `json:"order_count"`
	GrossSales    decimal.Decimal     `json:"gross_sales"`
	TaxCollected  decimal.Decimal     `json:"tax_collected"`
	NetSales      decimal.Decimal     `json:"net_sales"`
	ByMethod      map[string]int      `json:"orders_by_method"`
	SalesByMethod map[string]decimal.Decimal `json:"sales_by_method"`
}

// SalesSummary handles GET /branches/{bid}/reports/sales?from=...&to=...
// Dates are RFC3339; both default to the current day in server time.
func (h *ReportHandler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	b, err := h.branches.Branch(chi.URLParam(r, "bid"))
	if err != nil {
		writeError(w, http.StatusNotFound, "branch not found")
		return
	}

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.Add(24 * time.Hour)

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date, use RFC3339")
			return
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date, use RFC3339")
			return
		}
		to = t
	}

	resp := salesSummaryResponse{
		From:          from,
		To:            to,
		GrossSales:    decimal.Zero,
		TaxCollected:  decimal.Zero,
		NetSales:      decimal.Zero,
		ByMethod:      make(map[string]int),
		SalesByMethod: make(map[string]decimal.Decimal),
	}

	for _, o := range b.Completed.Get() {
		if o.CompletionTime.Before(from) || !o.CompletionTime.Before(to) {
			continue
		}
		resp.OrderCount++
		resp.GrossSales = resp.GrossSales.Add(o.Total)
		resp.TaxCollected = resp.TaxCollected.Add(o.TaxAmount)
		resp.NetSales = resp.NetSales.Add(o.Subtotal)

		method := o.Payment.Method
		resp.ByMethod[method]++
		if cur, ok := resp.SalesByMethod[method]; ok {
			resp.SalesByMethod[method] = cur.Add(o.Total)
		} else {
			resp.SalesByMethod[method] = o.Total
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
