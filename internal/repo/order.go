package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopflow-backend/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var orderColumns = []string{
	"order_id", "order_code", "owner_id", "status", "payment_status",
	"payment_method", "shipping_method", "tracking_number",
	"estimated_delivery", "delivered_at", "notes",
	"subtotal", "tax", "shipping", "discount", "total",
	"created_at", "updated_at",
}

type OrderRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewOrderRepo(db *sqlx.DB) *OrderRepo {
	return &OrderRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *OrderRepo) SaveOrder(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID, o.Code, o.OwnerID, string(o.Status), string(o.PaymentStatus),
			o.PaymentMethod, o.ShippingMethod, nullString(o.TrackingNumber),
			o.EstimatedDelivery, nullTime(o.DeliveredAt), nullString(o.Notes),
			o.Pricing.Subtotal, o.Pricing.Tax, o.Pricing.Shipping, o.Pricing.Discount, o.Pricing.Total,
			o.CreatedAt, o.UpdatedAt,
		).
		MustSql()

	if _, err := execContext(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (r *OrderRepo) SaveCustomer(ctx context.Context, orderID string, c entities.Customer) error {
	query, args := r.qb.Insert("order_customers").
		Columns("order_id", "name", "email", "phone", "street", "city", "state", "zip_code", "country").
		Values(orderID, c.Name, c.Email, nullString(c.Phone),
			c.Address.Street, c.Address.City, nullString(c.Address.State),
			nullString(c.Address.ZipCode), c.Address.Country).
		MustSql()

	if _, err := execContext(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("failed to save customer snapshot: %w", err)
	}
	return nil
}

func (r *OrderRepo) SaveItems(ctx context.Context, orderID string, items []entities.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.qb.Insert("order_items").
		Columns("order_id", "product_id", "name", "image", "price", "quantity", "size", "color")

	for _, it := range items {
		q = q.Values(orderID, it.ProductID, it.Name, it.Image, it.Price, it.Quantity,
			nullString(it.Size), nullString(it.Color))
	}

	query, args := q.MustSql()
	if _, err := execContext(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("failed to save items: %w", err)
	}
	return nil
}

func (r *OrderRepo) SaveStatusChange(ctx context.Context, orderID string, sc entities.StatusChange) error {
	query, args := r.qb.Insert("order_status_history").
		Columns("order_id", "status", "note", "changed_at").
		Values(orderID, string(sc.Status), sc.Note, sc.Timestamp).
		MustSql()

	if _, err := execContext(ctx, r.db, query, args...); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (r *OrderRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	query, args := r.qb.Select("1").
		From("orders").
		Where(sq.Eq{"order_code": code}).
		MustSql()

	var one int
	err := getContext(ctx, r.db, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check order code: %w", err)
	}
	return true, nil
}

func (r *OrderRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var order orderRow
	err := getContext(ctx, r.db, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	query, args = r.qb.Select("order_id", "name", "email", "phone", "street", "city", "state", "zip_code", "country").
		From("order_customers").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var customer customerRow
	if err := getContext(ctx, r.db, &customer, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get customer snapshot: %w", err)
	}

	query, args = r.qb.Select("order_id", "product_id", "name", "image", "price", "quantity", "size", "color").
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var items []itemRow
	if err := selectContext(ctx, r.db, &items, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get items: %w", err)
	}

	query, args = r.qb.Select("order_id", "status", "note", "changed_at").
		From("order_status_history").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("changed_at ASC", "history_id ASC").
		MustSql()

	var history []historyRow
	if err := selectContext(ctx, r.db, &history, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get status history: %w", err)
	}

	return orderToEntity(order, customer, items, history), nil
}

// OrderFilter narrows List results. Zero values mean "no filter".
type OrderFilter struct {
	OwnerID string
	Status  entities.Status
	Email   string
	Limit   int
	Offset  int
}

// List returns matching orders newest-first plus the total match count for
// pagination. Customer, item and history rows are batch-loaded to avoid a
// query per order.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]entities.Order, int, error) {
	base := r.qb.Select(prefixed("o", orderColumns)...).
		From("orders o").
		OrderBy("o.created_at DESC")

	countQ := r.qb.Select("COUNT(*)").From("orders o")

	if f.Email != "" {
		base = base.Join("order_customers c ON c.order_id = o.order_id").
			Where(sq.Eq{"c.email": f.Email})
		countQ = countQ.Join("order_customers c ON c.order_id = o.order_id").
			Where(sq.Eq{"c.email": f.Email})
	}
	if f.OwnerID != "" {
		base = base.Where(sq.Eq{"o.owner_id": f.OwnerID})
		countQ = countQ.Where(sq.Eq{"o.owner_id": f.OwnerID})
	}
	if f.Status != "" {
		base = base.Where(sq.Eq{"o.status": string(f.Status)})
		countQ = countQ.Where(sq.Eq{"o.status": string(f.Status)})
	}
	if f.Limit > 0 {
		base = base.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		base = base.Offset(uint64(f.Offset))
	}

	query, args := countQ.MustSql()
	var total int
	if err := getContext(ctx, r.db, &total, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query, args = base.MustSql()
	var orders []orderRow
	if err := selectContext(ctx, r.db, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to select orders: %w", err)
	}
	if len(orders) == 0 {
		return []entities.Order{}, total, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}

	result, err := r.assemble(ctx, orders, ids)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *OrderRepo) assemble(ctx context.Context, orders []orderRow, ids []string) ([]entities.Order, error) {
	query, args := r.qb.Select("order_id", "name", "email", "phone", "street", "city", "state", "zip_code", "country").
		From("order_customers").
		Where(sq.Eq{"order_id": ids}).
		MustSql()

	var customers []customerRow
	if err := selectContext(ctx, r.db, &customers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select customer snapshots: %w", err)
	}
	customerMap := make(map[string]customerRow, len(customers))
	for _, c := range customers {
		customerMap[c.OrderID] = c
	}

	query, args = r.qb.Select("order_id", "product_id", "name", "image", "price", "quantity", "size", "color").
		From("order_items").
		Where(sq.Eq{"order_id": ids}).
		MustSql()

	var items []itemRow
	if err := selectContext(ctx, r.db, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	itemsMap := make(map[string][]itemRow, len(ids))
	for _, it := range items {
		itemsMap[it.OrderID] = append(itemsMap[it.OrderID], it)
	}

	query, args = r.qb.Select("order_id", "status", "note", "changed_at").
		From("order_status_history").
		Where(sq.Eq{"order_id": ids}).
		OrderBy("changed_at ASC", "history_id ASC").
		MustSql()

	var history []historyRow
	if err := selectContext(ctx, r.db, &history, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select status history: %w", err)
	}
	historyMap := make(map[string][]historyRow, len(ids))
	for _, h := range history {
		historyMap[h.OrderID] = append(historyMap[h.OrderID], h)
	}

	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, orderToEntity(o, customerMap[o.OrderID], itemsMap[o.OrderID], historyMap[o.OrderID]))
	}
	return result, nil
}

// UpdateStatusParams carries a guarded status write: the UPDATE only lands
// if the row still holds From, which serializes concurrent transitions
// against the same order.
type UpdateStatusParams struct {
	OrderID        string
	From           entities.Status
	To             entities.Status
	PaymentStatus  entities.PaymentStatus
	TrackingNumber string
	Notes          string
	DeliveredAt    *time.Time
	UpdatedAt      time.Time
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, p UpdateStatusParams) (bool, error) {
	q := r.qb.Update("orders").
		Set("status", string(p.To)).
		Set("payment_status", string(p.PaymentStatus)).
		Set("updated_at", p.UpdatedAt).
		Where(sq.Eq{"order_id": p.OrderID, "status": string(p.From)})

	if p.TrackingNumber != "" {
		q = q.Set("tracking_number", p.TrackingNumber)
	}
	if p.Notes != "" {
		q = q.Set("notes", p.Notes)
	}
	if p.DeliveredAt != nil {
		q = q.Set("delivered_at", *p.DeliveredAt)
	}

	query, args := q.MustSql()
	res, err := execContext(ctx, r.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

type StatusCount struct {
	Status entities.Status `db:"status"`
	Count  int             `db:"count"`
	Value  float64         `db:"total_value"`
}

func (r *OrderRepo) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	query, args := r.qb.Select("status", "COUNT(*) AS count", "COALESCE(SUM(total), 0) AS total_value").
		From("orders").
		GroupBy("status").
		MustSql()

	var counts []StatusCount
	if err := selectContext(ctx, r.db, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate status counts: %w", err)
	}
	return counts, nil
}

// Revenue sums totals of orders that actually went out the door.
func (r *OrderRepo) Revenue(ctx context.Context) (float64, error) {
	query, args := r.qb.Select("COALESCE(SUM(total), 0)").
		From("orders").
		Where(sq.Eq{"status": []string{string(entities.StatusDelivered), string(entities.StatusShipped)}}).
		MustSql()

	var revenue float64
	if err := getContext(ctx, r.db, &revenue, query, args...); err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return revenue, nil
}

func (r *OrderRepo) Recent(ctx context.Context, count int) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC").
		Limit(uint64(count)).
		MustSql()

	var orders []orderRow
	if err := selectContext(ctx, r.db, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select recent orders: %w", err)
	}
	if len(orders) == 0 {
		return []entities.Order{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	return r.assemble(ctx, orders, ids)
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
