package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"shopflow-backend/internal/entities"
	"shopflow-backend/internal/repo"
	"shopflow-backend/internal/service"
	"shopflow-backend/pkg/trm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTxManager runs the callback directly and, mirroring a database
// rollback, restores fake product stock when the callback fails.
type fakeTxManager struct {
	products *fakeProductRepo
}

func (m *fakeTxManager) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	panic("not used in tests")
}

func (m *fakeTxManager) Do(ctx context.Context, cb func(ctx context.Context) error) error {
	var snapshot map[string]int
	if m.products != nil {
		snapshot = make(map[string]int, len(m.products.stock))
		for id, s := range m.products.stock {
			snapshot[id] = s
		}
	}
	if err := cb(ctx); err != nil {
		if snapshot != nil {
			m.products.stock = snapshot
		}
		return err
	}
	return nil
}

type fakeProductRepo struct {
	products map[string]entities.Product
	stock    map[string]int
	reserves []string
	releases []string
}

func newFakeProductRepo(products ...entities.Product) *fakeProductRepo {
	r := &fakeProductRepo{
		products: make(map[string]entities.Product),
		stock:    make(map[string]int),
	}
	for _, p := range products {
		r.products[p.ID] = p
		r.stock[p.ID] = p.Stock
	}
	return r
}

func (r *fakeProductRepo) GetProductByID(_ context.Context, id string) (entities.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return entities.Product{}, entities.ErrProductNotFound
	}
	p.Stock = r.stock[id]
	return p, nil
}

func (r *fakeProductRepo) ReserveStock(_ context.Context, id string, qty int) error {
	if _, ok := r.products[id]; !ok {
		return entities.ErrProductNotFound
	}
	if r.stock[id] < qty {
		return entities.ErrInsufficientStock
	}
	r.stock[id] -= qty
	r.reserves = append(r.reserves, id)
	return nil
}

func (r *fakeProductRepo) ReleaseStock(_ context.Context, id string, qty int) error {
	if _, ok := r.products[id]; !ok {
		return entities.ErrProductNotFound
	}
	r.stock[id] += qty
	r.releases = append(r.releases, id)
	return nil
}

type fakeOrderRepo struct {
	orders      map[string]entities.Order
	codes       map[string]bool
	saveErr     error
	updateOK    bool
	codeClashes int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   make(map[string]entities.Order),
		codes:    make(map[string]bool),
		updateOK: true,
	}
}

func (r *fakeOrderRepo) SaveOrder(_ context.Context, o entities.Order) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.orders[o.ID] = o
	r.codes[o.Code] = true
	return nil
}

func (r *fakeOrderRepo) SaveCustomer(context.Context, string, entities.Customer) error { return nil }
func (r *fakeOrderRepo) SaveItems(context.Context, string, []entities.LineItem) error  { return nil }

func (r *fakeOrderRepo) SaveStatusChange(_ context.Context, orderID string, sc entities.StatusChange) error {
	return nil
}

func (r *fakeOrderRepo) GetOrderByID(_ context.Context, id string) (entities.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) CodeExists(_ context.Context, code string) (bool, error) {
	if r.codeClashes > 0 {
		r.codeClashes--
		return true, nil
	}
	return r.codes[code], nil
}

func (r *fakeOrderRepo) List(context.Context, repo.OrderFilter) ([]entities.Order, int, error) {
	return nil, 0, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, p repo.UpdateStatusParams) (bool, error) {
	if !r.updateOK {
		return false, nil
	}
	o, ok := r.orders[p.OrderID]
	if !ok {
		return false, nil
	}
	if o.Status != p.From {
		return false, nil
	}
	o.Status = p.To
	o.PaymentStatus = p.PaymentStatus
	r.orders[p.OrderID] = o
	return true, nil
}

func (r *fakeOrderRepo) StatusCounts(context.Context) ([]repo.StatusCount, error) {
	counts := make(map[entities.Status]*repo.StatusCount)
	for _, o := range r.orders {
		c, ok := counts[o.Status]
		if !ok {
			c = &repo.StatusCount{Status: o.Status}
			counts[o.Status] = c
		}
		c.Count++
		c.Value += o.Pricing.Total
	}
	out := make([]repo.StatusCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeOrderRepo) Revenue(context.Context) (float64, error) {
	var sum float64
	for _, o := range r.orders {
		if o.Status == entities.StatusDelivered || o.Status == entities.StatusShipped {
			sum += o.Pricing.Total
		}
	}
	return sum, nil
}

func (r *fakeOrderRepo) Recent(context.Context, int) ([]entities.Order, error) { return nil, nil }

type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}
func (c *fakeCache) Set(key string, value []byte) { c.data[key] = value }
func (c *fakeCache) Remove(key string)            { delete(c.data, key) }

type fakePublisher struct {
	created []entities.Order
	changed []entities.Order
	err     error
}

func (p *fakePublisher) OrderCreated(_ context.Context, o entities.Order) error {
	p.created = append(p.created, o)
	return p.err
}

func (p *fakePublisher) OrderStatusChanged(_ context.Context, o entities.Order, _ entities.Status) error {
	p.changed = append(p.changed, o)
	return p.err
}

func newService(orders *fakeOrderRepo, products *fakeProductRepo, publisher *fakePublisher) *service.OrderService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewOrderService(logger, &fakeTxManager{products: products}, orders, products, newFakeCache(), publisher)
}

func validInput() service.CreateOrderInput {
	return service.CreateOrderInput{
		OwnerID: "u-1",
		Customer: entities.Customer{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
		},
		Items: []service.CreateItemInput{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 1},
		},
	}
}

func TestOrderService_CreateOrder(t *testing.T) {
	t.Run("reserves stock and persists pending order", func(t *testing.T) {
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 5},
			entities.Product{ID: "p-2", Name: "Scarf", Price: 20, Stock: 3},
		)
		orders := newFakeOrderRepo()
		publisher := &fakePublisher{}
		svc := newService(orders, products, publisher)

		order, err := svc.CreateOrder(context.Background(), validInput())
		require.NoError(t, err)

		assert.Equal(t, entities.StatusPending, order.Status)
		assert.Equal(t, entities.PaymentPending, order.PaymentStatus)
		assert.NotEmpty(t, order.ID)
		assert.Regexp(t, `^ORD`, order.Code)
		assert.Equal(t, "Credit Card", order.PaymentMethod)
		assert.Equal(t, "Standard Shipping", order.ShippingMethod)

		// stock decremented per line item
		assert.Equal(t, 3, products.stock["p-1"])
		assert.Equal(t, 2, products.stock["p-2"])

		// authoritative prices, not client-submitted ones
		require.Len(t, order.Items, 2)
		assert.Equal(t, 60.0, order.Items[0].Price)
		assert.Equal(t, "Jacket", order.Items[0].Name)

		// 60*2 + 20*1 = 140 > 100 -> free shipping
		assert.InDelta(t, 140.0, order.Pricing.Subtotal, 1e-9)
		assert.InDelta(t, 11.2, order.Pricing.Tax, 1e-9)
		assert.InDelta(t, 0.0, order.Pricing.Shipping, 1e-9)
		assert.InDelta(t, 151.2, order.Pricing.Total, 1e-9)

		require.Len(t, order.StatusHistory, 1)
		assert.Equal(t, "Order created", order.StatusHistory[0].Note)

		require.Len(t, publisher.created, 1)
		assert.Equal(t, order.ID, publisher.created[0].ID)
	})

	t.Run("items reserved in sorted product order", func(t *testing.T) {
		products := newFakeProductRepo(
			entities.Product{ID: "p-b", Name: "B", Price: 10, Stock: 5},
			entities.Product{ID: "p-a", Name: "A", Price: 10, Stock: 5},
		)
		orders := newFakeOrderRepo()
		svc := newService(orders, products, &fakePublisher{})

		in := validInput()
		in.Items = []service.CreateItemInput{
			{ProductID: "p-b", Quantity: 1},
			{ProductID: "p-a", Quantity: 1},
		}

		_, err := svc.CreateOrder(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, []string{"p-a", "p-b"}, products.reserves)
	})

	t.Run("insufficient stock fails with detail and rolls back", func(t *testing.T) {
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 5},
			entities.Product{ID: "p-2", Name: "Scarf", Price: 20, Stock: 0},
		)
		orders := newFakeOrderRepo()
		svc := newService(orders, products, &fakePublisher{})

		_, err := svc.CreateOrder(context.Background(), validInput())

		var stockErr *entities.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "Scarf", stockErr.ProductName)
		assert.Equal(t, 0, stockErr.Available)
		assert.Equal(t, 1, stockErr.Requested)

		// the rolled back transaction leaves stock untouched
		assert.Equal(t, 5, products.stock["p-1"])
		assert.Equal(t, 0, products.stock["p-2"])
		assert.Empty(t, orders.orders)
	})

	t.Run("unknown product fails", func(t *testing.T) {
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 5},
		)
		orders := newFakeOrderRepo()
		svc := newService(orders, products, &fakePublisher{})

		_, err := svc.CreateOrder(context.Background(), validInput())
		require.ErrorIs(t, err, entities.ErrProductNotFound)
		assert.Equal(t, 5, products.stock["p-1"])
	})

	t.Run("persist failure rolls back reservations", func(t *testing.T) {
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 5},
			entities.Product{ID: "p-2", Name: "Scarf", Price: 20, Stock: 3},
		)
		orders := newFakeOrderRepo()
		orders.saveErr = errors.New("db down")
		svc := newService(orders, products, &fakePublisher{})

		_, err := svc.CreateOrder(context.Background(), validInput())
		require.Error(t, err)
		assert.Equal(t, 5, products.stock["p-1"])
		assert.Equal(t, 3, products.stock["p-2"])
	})

	t.Run("code collisions exhaust after bounded retries", func(t *testing.T) {
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 5},
			entities.Product{ID: "p-2", Name: "Scarf", Price: 20, Stock: 3},
		)
		orders := newFakeOrderRepo()
		orders.codeClashes = 100
		svc := newService(orders, products, &fakePublisher{})

		_, err := svc.CreateOrder(context.Background(), validInput())
		require.ErrorIs(t, err, entities.ErrCodeExhausted)
	})

	t.Run("publish failure does not fail the order", func(t *testing.T) {
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 5},
			entities.Product{ID: "p-2", Name: "Scarf", Price: 20, Stock: 3},
		)
		orders := newFakeOrderRepo()
		svc := newService(orders, products, &fakePublisher{err: errors.New("kafka down")})

		_, err := svc.CreateOrder(context.Background(), validInput())
		require.NoError(t, err)
	})
}

func seedOrder(orders *fakeOrderRepo, status entities.Status, items ...entities.LineItem) entities.Order {
	now := time.Now().UTC().Add(-time.Hour)
	o := entities.Order{
		ID:            "o-1",
		Code:          "ORDTEST1",
		OwnerID:       "u-1",
		Status:        status,
		Items:         items,
		PaymentStatus: entities.PaymentPending,
		StatusHistory: []entities.StatusChange{{
			Status:    status,
			Timestamp: now,
			Note:      "Order created",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	orders.orders[o.ID] = o
	return o
}

func TestOrderService_ChangeStatus(t *testing.T) {
	t.Run("legal transition appends history", func(t *testing.T) {
		orders := newFakeOrderRepo()
		seedOrder(orders, entities.StatusPending)
		products := newFakeProductRepo()
		publisher := &fakePublisher{}
		svc := newService(orders, products, publisher)

		order, err := svc.ChangeStatus(context.Background(), "o-1", entities.StatusConfirmed, "", "")
		require.NoError(t, err)

		assert.Equal(t, entities.StatusConfirmed, order.Status)
		require.Len(t, order.StatusHistory, 2)
		assert.Equal(t, entities.StatusConfirmed, order.StatusHistory[1].Status)
		require.Len(t, publisher.changed, 1)
	})

	t.Run("illegal transition rejected", func(t *testing.T) {
		orders := newFakeOrderRepo()
		seedOrder(orders, entities.StatusPending)
		svc := newService(orders, newFakeProductRepo(), &fakePublisher{})

		_, err := svc.ChangeStatus(context.Background(), "o-1", entities.StatusShipped, "", "")
		require.ErrorIs(t, err, entities.ErrIllegalTransition)

		stored := orders.orders["o-1"]
		assert.Equal(t, entities.StatusPending, stored.Status)
	})

	t.Run("concurrent update loses the guard", func(t *testing.T) {
		orders := newFakeOrderRepo()
		seedOrder(orders, entities.StatusPending)
		orders.updateOK = false
		svc := newService(orders, newFakeProductRepo(), &fakePublisher{})

		_, err := svc.ChangeStatus(context.Background(), "o-1", entities.StatusConfirmed, "", "")
		require.ErrorIs(t, err, entities.ErrIllegalTransition)
	})

	t.Run("cancellation releases stock", func(t *testing.T) {
		orders := newFakeOrderRepo()
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 3},
		)
		seedOrder(orders, entities.StatusConfirmed, entities.LineItem{ProductID: "p-1", Quantity: 2})
		svc := newService(orders, products, &fakePublisher{})

		order, err := svc.ChangeStatus(context.Background(), "o-1", entities.StatusCancelled, "", "")
		require.NoError(t, err)

		assert.Equal(t, entities.StatusCancelled, order.Status)
		assert.Equal(t, 5, products.stock["p-1"])
	})

	t.Run("missing order", func(t *testing.T) {
		svc := newService(newFakeOrderRepo(), newFakeProductRepo(), &fakePublisher{})
		_, err := svc.ChangeStatus(context.Background(), "nope", entities.StatusConfirmed, "", "")
		require.ErrorIs(t, err, entities.ErrOrderNotFound)
	})
}

func TestOrderService_CancelOrder(t *testing.T) {
	t.Run("pending order cancels and restores stock", func(t *testing.T) {
		orders := newFakeOrderRepo()
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 3},
			entities.Product{ID: "p-2", Name: "Scarf", Price: 20, Stock: 7},
		)
		seedOrder(orders, entities.StatusPending,
			entities.LineItem{ProductID: "p-1", Quantity: 2},
			entities.LineItem{ProductID: "p-2", Quantity: 1},
		)
		svc := newService(orders, products, &fakePublisher{})

		order, err := svc.CancelOrder(context.Background(), "o-1")
		require.NoError(t, err)

		assert.Equal(t, entities.StatusCancelled, order.Status)
		assert.Equal(t, 5, products.stock["p-1"])
		assert.Equal(t, 8, products.stock["p-2"])
		require.Len(t, order.StatusHistory, 2)
	})

	t.Run("shipped order is not cancellable", func(t *testing.T) {
		orders := newFakeOrderRepo()
		products := newFakeProductRepo(
			entities.Product{ID: "p-1", Name: "Jacket", Price: 60, Stock: 3},
		)
		seedOrder(orders, entities.StatusShipped, entities.LineItem{ProductID: "p-1", Quantity: 2})
		svc := newService(orders, products, &fakePublisher{})

		_, err := svc.CancelOrder(context.Background(), "o-1")
		require.ErrorIs(t, err, entities.ErrNotCancellable)
		assert.Equal(t, 3, products.stock["p-1"])
	})
}

func TestOrderService_GetOrderByID(t *testing.T) {
	t.Run("caches after first read", func(t *testing.T) {
		orders := newFakeOrderRepo()
		seeded := seedOrder(orders, entities.StatusPending)
		svc := newService(orders, newFakeProductRepo(), &fakePublisher{})

		first, err := svc.GetOrderByID(context.Background(), "o-1")
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, first.ID)

		// remove from the store; a cached copy must still come back
		delete(orders.orders, "o-1")
		second, err := svc.GetOrderByID(context.Background(), "o-1")
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, second.ID)
	})

	t.Run("not found", func(t *testing.T) {
		svc := newService(newFakeOrderRepo(), newFakeProductRepo(), &fakePublisher{})
		_, err := svc.GetOrderByID(context.Background(), "nope")
		require.ErrorIs(t, err, entities.ErrOrderNotFound)
	})
}

func TestOrderService_Stats(t *testing.T) {
	orders := newFakeOrderRepo()
	now := time.Now().UTC()
	orders.orders["o-1"] = entities.Order{ID: "o-1", Status: entities.StatusDelivered, Pricing: entities.Pricing{Total: 100}, CreatedAt: now}
	orders.orders["o-2"] = entities.Order{ID: "o-2", Status: entities.StatusShipped, Pricing: entities.Pricing{Total: 50}, CreatedAt: now}
	orders.orders["o-3"] = entities.Order{ID: "o-3", Status: entities.StatusCancelled, Pricing: entities.Pricing{Total: 30}, CreatedAt: now}

	svc := newService(orders, newFakeProductRepo(), &fakePublisher{})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Summary.TotalOrders)
	assert.InDelta(t, 150.0, stats.Summary.TotalRevenue, 1e-9)
	assert.InDelta(t, 50.0, stats.Summary.AverageOrderValue, 1e-9)
	assert.Len(t, stats.Statuses, 3)
}
