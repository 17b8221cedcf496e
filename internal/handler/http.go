package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"shopflow-backend/internal/entities"
	"shopflow-backend/internal/middleware"
	"shopflow-backend/internal/repo"
	"shopflow-backend/internal/service"
	"shopflow-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (entities.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	ListOrders(ctx context.Context, f repo.OrderFilter) ([]entities.Order, int, error)
	ChangeStatus(ctx context.Context, orderID string, to entities.Status, trackingNumber, notes string) (entities.Order, error)
	CancelOrder(ctx context.Context, orderID string) (entities.Order, error)
	Stats(ctx context.Context) (service.Stats, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      OrderService
}

func NewHTTPHandler(logger *slog.Logger, svc OrderService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/stats", h.OrderStats)
		r.Get("/{order_id}", h.GetOrder)
		r.Patch("/{order_id}/status", h.UpdateStatus)
		r.Patch("/{order_id}/cancel", h.CancelOrder)
	})
}

// CreateOrder places a new order.
// @Summary      Place an order
// @Description  Validates stock, snapshots product data, derives pricing and persists the order in pending state
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body CreateOrderRequest true "Order payload"
// @Success      201 {object} CreateOrderResponse
// @Failure      400 {object} utils.ErrorResponse "Validation or stock error"
// @Failure      401 {object} utils.ErrorResponse
// @Router       /orders [post]
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		utils.WriteError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	in := service.CreateOrderInput{
		OwnerID:        user.ID,
		Customer:       CustomerJSONToEntity(req.Customer),
		Items:          make([]service.CreateItemInput, 0, len(req.Items)),
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
		Notes:          req.Notes,
	}
	if req.Pricing != nil {
		in.Discount = req.Pricing.Discount
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.CreateItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}

	order, err := h.svc.CreateOrder(ctx, in)
	if err != nil {
		ordersFailed.Inc()
		h.writeDomainError(ctx, w, err, "failed to create order")
		return
	}

	ordersCreated.Inc()
	utils.WriteJSON(w, CreateOrderResponse{
		Message:   "Order created successfully",
		Order:     OrderEntityToJSON(order, time.Now()),
		OrderCode: order.Code,
	}, http.StatusCreated)
}

// ListOrders returns the caller's orders; admins see every order and may
// filter by customer email.
// @Summary      List orders
// @Tags         orders
// @Produce      json
// @Param        page   query int    false "Page (1-based)"
// @Param        limit  query int    false "Page size"
// @Param        status query string false "Status filter"
// @Param        email  query string false "Customer email filter (admin only)"
// @Success      200 {object} ListOrdersResponse
// @Failure      401 {object} utils.ErrorResponse
// @Router       /orders [get]
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		utils.WriteError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	filter := repo.OrderFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if status := r.URL.Query().Get("status"); status != "" && status != "all" {
		if !entities.ValidStatus(entities.Status(status)) {
			utils.WriteError(w, "unknown status: "+status, http.StatusBadRequest)
			return
		}
		filter.Status = entities.Status(status)
	}
	if user.IsAdmin() {
		filter.Email = r.URL.Query().Get("email")
	} else {
		filter.OwnerID = user.ID
	}

	orders, total, err := h.svc.ListOrders(ctx, filter)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to list orders")
		return
	}

	pages := int(math.Ceil(float64(total) / float64(limit)))
	utils.WriteJSON(w, ListOrdersResponse{
		Orders: OrdersEntityToJSON(orders, time.Now()),
		Pagination: Pagination{
			Current: page,
			Pages:   pages,
			Total:   total,
			HasNext: page < pages,
			HasPrev: page > 1,
		},
	}, http.StatusOK)
}

// OrderStats returns aggregate order figures for the admin console.
// @Summary      Order statistics
// @Tags         orders
// @Produce      json
// @Success      200 {object} StatsResponse
// @Failure      403 {object} utils.ErrorResponse
// @Router       /orders/stats [get]
func (h *HTTPHandler) OrderStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		utils.WriteError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !user.IsAdmin() {
		utils.WriteError(w, "admin access required", http.StatusForbidden)
		return
	}

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to get stats")
		return
	}

	statusStats := make([]StatusStat, 0, len(stats.Statuses))
	for _, c := range stats.Statuses {
		statusStats = append(statusStats, StatusStat{
			Status:     string(c.Status),
			Count:      c.Count,
			TotalValue: c.Value,
		})
	}

	utils.WriteJSON(w, StatsResponse{
		Stats: statusStats,
		Summary: StatsSummary{
			TotalOrders:       stats.Summary.TotalOrders,
			TotalRevenue:      stats.Summary.TotalRevenue,
			AverageOrderValue: stats.Summary.AverageOrderValue,
		},
		RecentOrders: OrdersEntityToJSON(stats.Recent, time.Now()),
	}, http.StatusOK)
}

// GetOrder returns a single order with progress and eligibility flags.
// @Summary      Get order by id
// @Tags         orders
// @Produce      json
// @Param        order_id path string true "Order id"
// @Success      200 {object} Order
// @Failure      403 {object} utils.ErrorResponse
// @Failure      404 {object} utils.ErrorResponse
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		utils.WriteError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "order_id")
	order, err := h.svc.GetOrderByID(ctx, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to get order")
		return
	}

	if !user.IsAdmin() && order.OwnerID != user.ID {
		utils.WriteError(w, "access denied", http.StatusForbidden)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order, time.Now()), http.StatusOK)
}

// UpdateStatus moves an order through its lifecycle (admin only).
// @Summary      Update order status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order_id path string true "Order id"
// @Param        request body UpdateStatusRequest true "Target status"
// @Success      200 {object} OrderActionResponse
// @Failure      400 {object} utils.ErrorResponse "Illegal transition"
// @Failure      403 {object} utils.ErrorResponse
// @Failure      404 {object} utils.ErrorResponse
// @Router       /orders/{order_id}/status [patch]
func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		utils.WriteError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !user.IsAdmin() {
		utils.WriteError(w, "admin access required", http.StatusForbidden)
		return
	}

	var req UpdateStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if !entities.ValidStatus(entities.Status(req.Status)) {
		utils.WriteError(w, "unknown status: "+req.Status, http.StatusBadRequest)
		return
	}

	orderID := chi.URLParam(r, "order_id")
	order, err := h.svc.ChangeStatus(ctx, orderID, entities.Status(req.Status), req.TrackingNumber, req.Notes)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to update order status")
		return
	}

	statusTransitions.WithLabelValues(req.Status).Inc()
	utils.WriteJSON(w, OrderActionResponse{
		Message: "Order status updated successfully",
		Order:   OrderEntityToJSON(order, time.Now()),
	}, http.StatusOK)
}

// CancelOrder cancels the caller's order and restores stock.
// @Summary      Cancel order
// @Tags         orders
// @Produce      json
// @Param        order_id path string true "Order id"
// @Success      200 {object} OrderActionResponse
// @Failure      400 {object} utils.ErrorResponse "Order not cancellable"
// @Failure      403 {object} utils.ErrorResponse
// @Failure      404 {object} utils.ErrorResponse
// @Router       /orders/{order_id}/cancel [patch]
func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		utils.WriteError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orderID := chi.URLParam(r, "order_id")
	order, err := h.svc.GetOrderByID(ctx, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to get order")
		return
	}
	if !user.IsAdmin() && order.OwnerID != user.ID {
		utils.WriteError(w, "access denied", http.StatusForbidden)
		return
	}

	order, err = h.svc.CancelOrder(ctx, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err, "failed to cancel order")
		return
	}

	ordersCancelled.Inc()
	utils.WriteJSON(w, OrderActionResponse{
		Message: "Order cancelled successfully",
		Order:   OrderEntityToJSON(order, time.Now()),
	}, http.StatusOK)
}

func (h *HTTPHandler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	var stockErr *entities.InsufficientStockError
	var transitionErr *entities.IllegalTransitionError

	switch {
	case errors.As(err, &stockErr):
		stockRejections.Inc()
		utils.WriteError(w, stockErr.Error(), http.StatusBadRequest)
	case errors.Is(err, entities.ErrInsufficientStock):
		stockRejections.Inc()
		utils.WriteError(w, "insufficient stock", http.StatusBadRequest)
	case errors.As(err, &transitionErr):
		utils.WriteError(w, transitionErr.Error(), http.StatusBadRequest)
	case errors.Is(err, entities.ErrIllegalTransition):
		utils.WriteError(w, "illegal status transition", http.StatusBadRequest)
	case errors.Is(err, entities.ErrNotCancellable):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrProductNotFound):
		utils.WriteError(w, "product not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrForbidden):
		utils.WriteError(w, "access denied", http.StatusForbidden)
	default:
		h.logger.ErrorContext(ctx, logMsg, slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
