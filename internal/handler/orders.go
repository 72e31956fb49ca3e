package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tabletrack/api/internal/middleware"
	"github.com/tabletrack/api/internal/model"
	"github.com/tabletrack/api/internal/service"
)

// BranchResolver resolves a branch id to its synced collections.
// Satisfied by *service.Registry.
type BranchResolver interface {
	Branch(branchID string) (*service.Branch, error)
}

// OrderServicer is the lifecycle surface the handlers need.
// Satisfied by *service.Service; narrow interface for testability.
type OrderServicer interface {
	Place(ctx context.Context, b *service.Branch, req service.PlaceRequest) (*service.PlaceResult, error)
	StartCooking(ctx context.Context, b *service.Branch, orderID string) error
	CompleteServing(ctx context.Context, b *service.Branch, orderID string) error
	ConfirmPayment(ctx context.Context, b *service.Branch, orderID string, payment model.PaymentDetails) (*service.PaymentResult, error)
	Cancel(ctx context.Context, b *service.Branch, orderID, reason, notes, actor string) (*model.CancelledOrder, error)
	Split(ctx context.Context, b *service.Branch, orderID string, selections map[string]int) (*model.ActiveOrder, error)
	Merge(ctx context.Context, b *service.Branch, targetID string, sourceIDs ...string) (*model.ActiveOrder, error)
	MoveOrder(ctx context.Context, b *service.Branch, orderID, destOrderID string) (*model.ActiveOrder, error)
}

type OrderHandler struct {
	svc      OrderServicer
	branches BranchResolver
	log      *logrus.Entry
}

func NewOrderHandler(svc OrderServicer, branches BranchResolver, log *logrus.Entry) *OrderHandler {
	return &OrderHandler{svc: svc, branches: branches, log: log}
}

// RegisterRoutes mounts the order endpoints inside /branches/{bid}/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Place)
	r.Get("/", h.List)
	r.Post("/merge", h.Merge)
	r.Post("/{id}/cooking", h.StartCooking)
	r.Post("/{id}/served", h.CompleteServing)
	r.Post("/{id}/payment", h.ConfirmPayment)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/split", h.Split)
	r.Post("/{id}/move", h.Move)
}

// --- Request / response types ---

type placeOrderItemRequest struct {
	MenuItemID string                 `json:"menu_item_id" validate:"required"`
	Name       string                 `json:"name" validate:"required"`
	Quantity   int                    `json:"quantity" validate:"gt=0"`
	UnitPrice  decimal.Decimal        `json:"unit_price"`
	Options    []model.SelectedOption `json:"options"`
	Notes      string                 `json:"notes"`
	Takeaway   bool                   `json:"takeaway"`
}

type placeOrderRequest struct {
	TableName     string                  `json:"table_name" validate:"required"`
	Floor         string                  `json:"floor"`
	CustomerName  string                  `json:"customer_name"`
	CustomerCount int                     `json:"customer_count" validate:"gte=0"`
	SendToKitchen bool                    `json:"send_to_kitchen"`
	Items         []placeOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type placeOrderResponse struct {
	Order        model.ActiveOrder `json:"order"`
	FallbackUsed bool              `json:"fallback_used"`
	PrintWarning string            `json:"print_warning,omitempty"`
}

type paymentRequest struct {
	Method         string          `json:"method" validate:"required"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	ChangeAmount   decimal.Decimal `json:"change_amount"`
	Reference      string          `json:"reference"`
}

type paymentResponse struct {
	Order        model.CompletedOrder `json:"order"`
	FallbackUsed bool                 `json:"fallback_used"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
	Notes  string `json:"notes"`
}

type splitRequest struct {
	Selections map[string]int `json:"selections" validate:"required,min=1"`
}

type mergeRequest struct {
	TargetOrderID  string   `json:"target_order_id" validate:"required"`
	SourceOrderIDs []string `json:"source_order_ids" validate:"required,min=1"`
}

type moveRequest struct {
	DestOrderID string `json:"dest_order_id" validate:"required"`
}

// --- Handlers ---

func (h *OrderHandler) branch(w http.ResponseWriter, r *http.Request) *service.Branch {
	b, err := h.branches.Branch(chi.URLParam(r, "bid"))
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			writeError(w, http.StatusNotFound, "branch not found")
			return nil
		}
		h.log.WithError(err).Error("open branch")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	return b
}

// Place handles POST /branches/{bid}/orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}

	var req placeOrderRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]model.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.OrderItem{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Options:    it.Options,
			Notes:      it.Notes,
			Takeaway:   it.Takeaway,
		}
	}

	result, err := h.svc.Place(r.Context(), b, service.PlaceRequest{
		TableName:     req.TableName,
		Floor:         req.Floor,
		CustomerName:  req.CustomerName,
		CustomerCount: req.CustomerCount,
		Items:         items,
		SendToKitchen: req.SendToKitchen,
	})
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.WithError(err).Error("place order")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := placeOrderResponse{Order: result.Order, FallbackUsed: result.FallbackUsed}
	if result.PrintWarning != nil {
		resp.PrintWarning = result.PrintWarning.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /branches/{bid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": b.Active.Get()})
}

// StartCooking handles POST /branches/{bid}/orders/{id}/cooking.
func (h *OrderHandler) StartCooking(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}
	if err := h.svc.StartCooking(r.Context(), b, chi.URLParam(r, "id")); err != nil {
		h.log.WithError(err).Error("start cooking")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteServing handles POST /branches/{bid}/orders/{id}/served.
func (h *OrderHandler) CompleteServing(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}
	if err := h.svc.CompleteServing(r.Context(), b, chi.URLParam(r, "id")); err != nil {
		h.log.WithError(err).Error("complete serving")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfirmPayment handles POST /branches/{bid}/orders/{id}/payment.
func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}

	var req paymentRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.ConfirmPayment(r.Context(), b, chi.URLParam(r, "id"), model.PaymentDetails{
		Method:         req.Method,
		AmountReceived: req.AmountReceived,
		ChangeAmount:   req.ChangeAmount,
		Reference:      req.Reference,
	})
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.WithError(err).Error("confirm payment")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{Order: result.Order, FallbackUsed: result.FallbackUsed})
}

// Cancel handles POST /branches/{bid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}

	var req cancelRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := ""
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		actor = claims.UserID
	}

	cancelled, err := h.svc.Cancel(r.Context(), b, chi.URLParam(r, "id"), req.Reason, req.Notes, actor)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.WithError(err).Error("cancel order")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, cancelled)
}

// Split handles POST /branches/{bid}/orders/{id}/split.
func (h *OrderHandler) Split(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}

	var req splitRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sibling, err := h.svc.Split(r.Context(), b, chi.URLParam(r, "id"), req.Selections)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.WithError(err).Error("split order")
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, sibling)
}

// Merge handles POST /branches/{bid}/orders/merge.
func (h *OrderHandler) Merge(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}

	var req mergeRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	merged, err := h.svc.Merge(r.Context(), b, req.TargetOrderID, req.SourceOrderIDs...)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "target order not found")
			return
		}
		h.log.WithError(err).Error("merge orders")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, merged)
}

// Move handles POST /branches/{bid}/orders/{id}/move.
func (h *OrderHandler) Move(w http.ResponseWriter, r *http.Request) {
	b := h.branch(w, r)
	if b == nil {
		return
	}

	var req moveRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	merged, err := h.svc.MoveOrder(r.Context(), b, chi.URLParam(r, "id"), req.DestOrderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "destination order not found")
			return
		}
		h.log.WithError(err).Error("move order")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, merged)
}
