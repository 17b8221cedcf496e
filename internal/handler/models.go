package handler

import (
	"time"

	"shopflow-backend/internal/entities"
)

// CreateOrderRequest is the storefront checkout payload. Prices are looked
// up server-side; only the discount is read from the pricing block.
type CreateOrderRequest struct {
	Items          []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	Customer       Customer          `json:"customer" validate:"required"`
	Pricing        *PricingInput     `json:"pricing"`
	PaymentMethod  string            `json:"paymentMethod"`
	ShippingMethod string            `json:"shippingMethod"`
	Notes          string            `json:"notes"`
}

type CreateOrderItem struct {
	ProductID string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type PricingInput struct {
	Discount float64 `json:"discount" validate:"gte=0"`
}

type Customer struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Phone   string  `json:"phone,omitempty"`
	Address Address `json:"address"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country"`
}

type UpdateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"trackingNumber"`
	Notes          string `json:"notes"`
}

type OrderItem struct {
	ProductID string  `json:"product"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size,omitempty"`
	Color     string  `json:"color,omitempty"`
}

type Pricing struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

type StatusChange struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

type ProgressStep struct {
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
	Active    bool   `json:"active"`
}

type Progress struct {
	Current  string         `json:"current"`
	Progress float64        `json:"progress"`
	Steps    []ProgressStep `json:"steps"`
}

// Order is the wire shape of an order, including the derived lifecycle
// flags the storefront renders.
type Order struct {
	ID                string         `json:"id"`
	OrderCode         string         `json:"orderId"`
	OwnerID           string         `json:"user"`
	Customer          Customer       `json:"customer"`
	Items             []OrderItem    `json:"items"`
	Pricing           Pricing        `json:"pricing"`
	Status            string         `json:"status"`
	PaymentStatus     string         `json:"paymentStatus"`
	PaymentMethod     string         `json:"paymentMethod"`
	ShippingMethod    string         `json:"shippingMethod"`
	TrackingNumber    string         `json:"trackingNumber,omitempty"`
	EstimatedDelivery time.Time      `json:"estimatedDelivery"`
	DeliveredAt       *time.Time     `json:"deliveredAt,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	StatusHistory     []StatusChange `json:"statusHistory"`
	Progress          Progress       `json:"progress"`
	CanCancel         bool           `json:"canCancel"`
	CanReturn         bool           `json:"canReturn"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

type Pagination struct {
	Current int  `json:"current"`
	Pages   int  `json:"pages"`
	Total   int  `json:"total"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

type ListOrdersResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type CreateOrderResponse struct {
	Message   string `json:"message"`
	Order     Order  `json:"order"`
	OrderCode string `json:"orderId"`
}

type OrderActionResponse struct {
	Message string `json:"message"`
	Order   Order  `json:"order"`
}

type StatusStat struct {
	Status     string  `json:"status"`
	Count      int     `json:"count"`
	TotalValue float64 `json:"totalValue"`
}

type StatsSummary struct {
	TotalOrders       int     `json:"totalOrders"`
	TotalRevenue      float64 `json:"totalRevenue"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

type StatsResponse struct {
	Stats        []StatusStat `json:"stats"`
	Summary      StatsSummary `json:"summary"`
	RecentOrders []Order      `json:"recentOrders"`
}

func CustomerJSONToEntity(c Customer) entities.Customer {
	return entities.Customer{
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
		Address: entities.Address{
			Street:  c.Address.Street,
			City:    c.Address.City,
			State:   c.Address.State,
			ZipCode: c.Address.ZipCode,
			Country: c.Address.Country,
		},
	}
}

func CustomerEntityToJSON(c entities.Customer) Customer {
	return Customer{
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
		Address: Address{
			Street:  c.Address.Street,
			City:    c.Address.City,
			State:   c.Address.State,
			ZipCode: c.Address.ZipCode,
			Country: c.Address.Country,
		},
	}
}

func ProgressEntityToJSON(p entities.Progress) Progress {
	steps := make([]ProgressStep, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, ProgressStep{
			Status:    string(s.Status),
			Completed: s.Completed,
			Active:    s.Active,
		})
	}
	return Progress{
		Current:  string(p.Current),
		Progress: p.Percent,
		Steps:    steps,
	}
}

func OrderEntityToJSON(o entities.Order, now time.Time) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}

	history := make([]StatusChange, 0, len(o.StatusHistory))
	for _, sc := range o.StatusHistory {
		history = append(history, StatusChange{
			Status:    string(sc.Status),
			Timestamp: sc.Timestamp,
			Note:      sc.Note,
		})
	}

	return Order{
		ID:                o.ID,
		OrderCode:         o.Code,
		OwnerID:           o.OwnerID,
		Customer:          CustomerEntityToJSON(o.Customer),
		Items:             items,
		Pricing: Pricing{
			Subtotal: o.Pricing.Subtotal,
			Tax:      o.Pricing.Tax,
			Shipping: o.Pricing.Shipping,
			Discount: o.Pricing.Discount,
			Total:    o.Pricing.Total,
		},
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		PaymentMethod:     o.PaymentMethod,
		ShippingMethod:    o.ShippingMethod,
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		DeliveredAt:       o.DeliveredAt,
		Notes:             o.Notes,
		StatusHistory:     history,
		Progress:          ProgressEntityToJSON(o.Progress()),
		CanCancel:         o.CanBeCancelled(),
		CanReturn:         o.CanBeReturned(now),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func OrdersEntityToJSON(orders []entities.Order, now time.Time) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderEntityToJSON(o, now))
	}
	return out
}
