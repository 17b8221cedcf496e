package repo

import (
	"database/sql"
	"time"

	"shopflow-backend/internal/entities"
)

type orderRow struct {
	OrderID        string         `db:"order_id"`
	OrderCode      string         `db:"order_code"`
	OwnerID        string         `db:"owner_id"`
	Status         string         `db:"status"`
	PaymentStatus  string         `db:"payment_status"`
	PaymentMethod  string         `db:"payment_method"`
	ShippingMethod string         `db:"shipping_method"`
	TrackingNumber sql.NullString `db:"tracking_number"`
	EstimatedAt    time.Time      `db:"estimated_delivery"`
	DeliveredAt    sql.NullTime   `db:"delivered_at"`
	Notes          sql.NullString `db:"notes"`
	Subtotal       float64        `db:"subtotal"`
	Tax            float64        `db:"tax"`
	Shipping       float64        `db:"shipping"`
	Discount       float64        `db:"discount"`
	Total          float64        `db:"total"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

type customerRow struct {
	OrderID string         `db:"order_id"`
	Name    string         `db:"name"`
	Email   string         `db:"email"`
	Phone   sql.NullString `db:"phone"`
	Street  string         `db:"street"`
	City    string         `db:"city"`
	State   sql.NullString `db:"state"`
	ZipCode sql.NullString `db:"zip_code"`
	Country string         `db:"country"`
}

type itemRow struct {
	OrderID   string         `db:"order_id"`
	ProductID string         `db:"product_id"`
	Name      string         `db:"name"`
	Image     string         `db:"image"`
	Price     float64        `db:"price"`
	Quantity  int            `db:"quantity"`
	Size      sql.NullString `db:"size"`
	Color     sql.NullString `db:"color"`
}

type historyRow struct {
	OrderID   string    `db:"order_id"`
	Status    string    `db:"status"`
	Note      string    `db:"note"`
	ChangedAt time.Time `db:"changed_at"`
}

type productRow struct {
	ProductID string  `db:"product_id"`
	Name      string  `db:"name"`
	Image     string  `db:"image"`
	Price     float64 `db:"price"`
	Stock     int     `db:"stock"`
}

type userRow struct {
	UserID string `db:"user_id"`
	Email  string `db:"email"`
	Role   string `db:"role"`
}

func customerToEntity(c customerRow) entities.Customer {
	return entities.Customer{
		Name:  c.Name,
		Email: c.Email,
		Phone: nullStringToString(c.Phone),
		Address: entities.Address{
			Street:  c.Street,
			City:    c.City,
			State:   nullStringToString(c.State),
			ZipCode: nullStringToString(c.ZipCode),
			Country: c.Country,
		},
	}
}

func itemToEntity(i itemRow) entities.LineItem {
	return entities.LineItem{
		ProductID: i.ProductID,
		Name:      i.Name,
		Image:     i.Image,
		Price:     i.Price,
		Quantity:  i.Quantity,
		Size:      nullStringToString(i.Size),
		Color:     nullStringToString(i.Color),
	}
}

func historyToEntity(h historyRow) entities.StatusChange {
	return entities.StatusChange{
		Status:    entities.Status(h.Status),
		Timestamp: h.ChangedAt,
		Note:      h.Note,
	}
}

func orderToEntity(o orderRow, c customerRow, items []itemRow, history []historyRow) entities.Order {
	order := entities.Order{
		ID:                o.OrderID,
		Code:              o.OrderCode,
		OwnerID:           o.OwnerID,
		Customer:          customerToEntity(c),
		Status:            entities.Status(o.Status),
		PaymentStatus:     entities.PaymentStatus(o.PaymentStatus),
		PaymentMethod:     o.PaymentMethod,
		ShippingMethod:    o.ShippingMethod,
		TrackingNumber:    nullStringToString(o.TrackingNumber),
		EstimatedDelivery: o.EstimatedAt,
		Notes:             nullStringToString(o.Notes),
		Pricing: entities.Pricing{
			Subtotal: o.Subtotal,
			Tax:      o.Tax,
			Shipping: o.Shipping,
			Discount: o.Discount,
			Total:    o.Total,
		},
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}

	if o.DeliveredAt.Valid {
		t := o.DeliveredAt.Time
		order.DeliveredAt = &t
	}

	if len(items) > 0 {
		order.Items = make([]entities.LineItem, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, itemToEntity(it))
		}
	}

	if len(history) > 0 {
		order.StatusHistory = make([]entities.StatusChange, 0, len(history))
		for _, h := range history {
			order.StatusHistory = append(order.StatusHistory, historyToEntity(h))
		}
	}

	return order
}

func productToEntity(p productRow) entities.Product {
	return entities.Product{
		ID:    p.ProductID,
		Name:  p.Name,
		Image: p.Image,
		Price: p.Price,
		Stock: p.Stock,
	}
}

func userToEntity(u userRow) entities.User {
	return entities.User{
		ID:    u.UserID,
		Email: u.Email,
		Role:  u.Role,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
