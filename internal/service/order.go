package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"shopflow-backend/internal/entities"
	"shopflow-backend/internal/ordercode"
	"shopflow-backend/internal/pricing"
	"shopflow-backend/internal/repo"
	"shopflow-backend/pkg/trm"
	"shopflow-backend/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	codeAttempts          = 5
	estimatedDeliveryDays = 7
	recentOrdersCount     = 5

	defaultPaymentMethod  = "Credit Card"
	defaultShippingMethod = "Standard Shipping"
)

type OrderRepo interface {
	SaveOrder(ctx context.Context, o entities.Order) error
	SaveCustomer(ctx context.Context, orderID string, c entities.Customer) error
	SaveItems(ctx context.Context, orderID string, items []entities.LineItem) error
	SaveStatusChange(ctx context.Context, orderID string, sc entities.StatusChange) error

	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, f repo.OrderFilter) ([]entities.Order, int, error)
	UpdateStatus(ctx context.Context, p repo.UpdateStatusParams) (bool, error)

	StatusCounts(ctx context.Context) ([]repo.StatusCount, error)
	Revenue(ctx context.Context) (float64, error)
	Recent(ctx context.Context, count int) ([]entities.Order, error)
}

type ProductRepo interface {
	GetProductByID(ctx context.Context, productID string) (entities.Product, error)
	ReserveStock(ctx context.Context, productID string, quantity int) error
	ReleaseStock(ctx context.Context, productID string, quantity int) error
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Remove(key string)
}

type EventPublisher interface {
	OrderCreated(ctx context.Context, order entities.Order) error
	OrderStatusChanged(ctx context.Context, order entities.Order, from entities.Status) error
}

type OrderService struct {
	logger    *slog.Logger
	txManager trm.Manager
	orders    OrderRepo
	products  ProductRepo
	cache     Cache
	events    EventPublisher
}

func NewOrderService(
	logger *slog.Logger,
	txManager trm.Manager,
	orders OrderRepo,
	products ProductRepo,
	cache Cache,
	events EventPublisher,
) *OrderService {
	return &OrderService{
		logger:    logger.With(slog.String("service", "order")),
		txManager: txManager,
		orders:    orders,
		products:  products,
		cache:     cache,
		events:    events,
	}
}

type CreateItemInput struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

type CreateOrderInput struct {
	OwnerID        string
	Customer       entities.Customer
	Items          []CreateItemInput
	Discount       float64
	PaymentMethod  string
	ShippingMethod string
	Notes          string
}

// CreateOrder runs the whole creation path in one transaction: stock is
// reserved per line item with authoritative prices taken from the product
// rows, pricing is derived, a unique code is minted and the order lands in
// pending state with its first history entry. Any failure rolls the
// transaction back, which also returns every reserved unit.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (entities.Order, error) {
	// Reserve in product-id order so two concurrent orders holding row
	// locks on the same pair of products cannot deadlock.
	items := make([]CreateItemInput, len(in.Items))
	copy(items, in.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	var order entities.Order
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		lineItems := make([]entities.LineItem, 0, len(items))
		for _, it := range items {
			product, err := s.products.GetProductByID(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("product %s: %w", it.ProductID, err)
			}

			if err := s.products.ReserveStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, entities.ErrInsufficientStock) {
					return &entities.InsufficientStockError{
						ProductName: product.Name,
						Available:   product.Stock,
						Requested:   it.Quantity,
					}
				}
				return fmt.Errorf("failed to reserve %s: %w", it.ProductID, err)
			}

			lineItems = append(lineItems, entities.LineItem{
				ProductID: product.ID,
				Name:      product.Name,
				Image:     product.Image,
				Price:     product.Price,
				Quantity:  it.Quantity,
				Size:      it.Size,
				Color:     it.Color,
			})
		}

		code, err := s.generateCode(ctx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order = entities.Order{
			ID:                uuid.NewString(),
			Code:              code,
			OwnerID:           in.OwnerID,
			Customer:          in.Customer,
			Items:             lineItems,
			Pricing:           pricing.Compute(lineItems, in.Discount),
			Status:            entities.StatusPending,
			PaymentStatus:     entities.PaymentPending,
			PaymentMethod:     defaultString(in.PaymentMethod, defaultPaymentMethod),
			ShippingMethod:    defaultString(in.ShippingMethod, defaultShippingMethod),
			EstimatedDelivery: now.Add(estimatedDeliveryDays * 24 * time.Hour),
			Notes:             in.Notes,
			StatusHistory: []entities.StatusChange{{
				Status:    entities.StatusPending,
				Timestamp: now,
				Note:      "Order created",
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.orders.SaveOrder(ctx, order); err != nil {
			return err
		}
		if err := s.orders.SaveCustomer(ctx, order.ID, order.Customer); err != nil {
			return err
		}
		if err := s.orders.SaveItems(ctx, order.ID, order.Items); err != nil {
			return err
		}
		return s.orders.SaveStatusChange(ctx, order.ID, order.StatusHistory[0])
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.cacheOrder(order)
	s.publish(ctx, func(ctx context.Context) error {
		return s.events.OrderCreated(ctx, order)
	})

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_code", order.Code),
		slog.Float64("total", order.Pricing.Total),
	)
	return order, nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	if data, ok := s.cache.Get(orderID); ok {
		var order entities.Order
		if err := order.Unmarshal(data); err == nil {
			return order, nil
		}
		// A corrupt cache entry is not fatal; fall through to the store.
		s.cache.Remove(orderID)
	}

	var order entities.Order
	fn := func() error {
		var err error
		order, err = s.orders.GetOrderByID(ctx, orderID)
		return err
	}
	cfg := utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  3,
		Multiplier:   2,
	}
	if err := utils.Retry(cfg, fn, entities.ErrOrderNotFound); err != nil {
		return entities.Order{}, err
	}

	s.cacheOrder(order)
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f repo.OrderFilter) ([]entities.Order, int, error) {
	return s.orders.List(ctx, f)
}

type StatsSummary struct {
	TotalOrders       int
	TotalRevenue      float64
	AverageOrderValue float64
}

type Stats struct {
	Statuses []repo.StatusCount
	Summary  StatsSummary
	Recent   []entities.Order
}

// Stats fans the three aggregate queries out concurrently.
func (s *OrderService) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.orders.StatusCounts(ctx)
		if err != nil {
			return err
		}
		stats.Statuses = counts
		return nil
	})
	g.Go(func() error {
		revenue, err := s.orders.Revenue(ctx)
		if err != nil {
			return err
		}
		stats.Summary.TotalRevenue = revenue
		return nil
	})
	g.Go(func() error {
		recent, err := s.orders.Recent(ctx, recentOrdersCount)
		if err != nil {
			return err
		}
		stats.Recent = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	for _, c := range stats.Statuses {
		stats.Summary.TotalOrders += c.Count
	}
	if stats.Summary.TotalOrders > 0 {
		stats.Summary.AverageOrderValue = stats.Summary.TotalRevenue / float64(stats.Summary.TotalOrders)
	}
	return stats, nil
}

// ChangeStatus applies one lifecycle transition. The status write carries a
// WHERE status = <from> guard, so of two racing transitions exactly one
// lands; the other fails instead of overwriting history. Transitions into
// cancelled return reserved stock in the same transaction.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID string, to entities.Status, trackingNumber, notes string) (entities.Order, error) {
	var order entities.Order
	var prev entities.Status
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}

		from := o.Status
		if err := o.Transition(to, time.Now().UTC()); err != nil {
			return err
		}
		if trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
		if notes != "" {
			o.Notes = notes
		}

		if to == entities.StatusCancelled {
			if err := s.releaseItems(ctx, o.Items); err != nil {
				return err
			}
		}

		ok, err := s.orders.UpdateStatus(ctx, repo.UpdateStatusParams{
			OrderID:        o.ID,
			From:           from,
			To:             to,
			PaymentStatus:  o.PaymentStatus,
			TrackingNumber: trackingNumber,
			Notes:          notes,
			DeliveredAt:    o.DeliveredAt,
			UpdatedAt:      o.UpdatedAt,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s was updated concurrently", entities.ErrIllegalTransition, o.ID)
		}

		if err := s.orders.SaveStatusChange(ctx, o.ID, o.StatusHistory[len(o.StatusHistory)-1]); err != nil {
			return err
		}

		order = o
		prev = from
		return nil
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.cacheOrder(order)
	s.publish(ctx, func(ctx context.Context) error {
		return s.events.OrderStatusChanged(ctx, order, prev)
	})
	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)),
	)
	return order, nil
}

// CancelOrder is the shopper-facing path: only pending and confirmed orders
// qualify, and every reserved unit goes back to the shelf.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (entities.Order, error) {
	var order entities.Order
	var prev entities.Status
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}

		if !o.CanBeCancelled() {
			return fmt.Errorf("%w: status %s", entities.ErrNotCancellable, o.Status)
		}

		from := o.Status
		if err := o.Transition(entities.StatusCancelled, time.Now().UTC()); err != nil {
			return err
		}

		if err := s.releaseItems(ctx, o.Items); err != nil {
			return err
		}

		ok, err := s.orders.UpdateStatus(ctx, repo.UpdateStatusParams{
			OrderID:       o.ID,
			From:          from,
			To:            entities.StatusCancelled,
			PaymentStatus: o.PaymentStatus,
			UpdatedAt:     o.UpdatedAt,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s was updated concurrently", entities.ErrNotCancellable, o.ID)
		}

		if err := s.orders.SaveStatusChange(ctx, o.ID, o.StatusHistory[len(o.StatusHistory)-1]); err != nil {
			return err
		}

		order = o
		prev = from
		return nil
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.cacheOrder(order)
	s.publish(ctx, func(ctx context.Context) error {
		return s.events.OrderStatusChanged(ctx, order, prev)
	})
	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", order.ID))
	return order, nil
}

func (s *OrderService) releaseItems(ctx context.Context, items []entities.LineItem) error {
	for _, it := range items {
		if err := s.products.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("failed to release %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func (s *OrderService) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := ordercode.Generate()
		if err != nil {
			return "", err
		}
		exists, err := s.orders.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.logger.WarnContext(ctx, "order code collision", slog.String("code", code))
	}
	return "", entities.ErrCodeExhausted
}

func (s *OrderService) cacheOrder(order entities.Order) {
	data, err := order.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal order for cache", slog.Any("error", err))
		return
	}
	s.cache.Set(order.ID, data)
}

func (s *OrderService) publish(ctx context.Context, fn func(ctx context.Context) error) {
	if s.events == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order event", slog.Any("error", err))
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
