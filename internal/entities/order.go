package entities

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// transitions is the full lifecycle graph. Terminal statuses map to nil.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

// happyPath is the ordered sequence a successful order walks through,
// used for progress rendering.
var happyPath = [...]Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered}

const returnWindow = 30 * 24 * time.Hour

func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

type Address struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// Customer is a snapshot taken at order time. Later profile edits
// must not rewrite historical orders.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address Address
}

// LineItem freezes product name, image and price at purchase time.
type LineItem struct {
	ProductID string
	Name      string
	Image     string
	Price     float64
	Quantity  int
	Size      string
	Color     string
}

type Pricing struct {
	Subtotal float64
	Tax      float64
	Shipping float64
	Discount float64
	Total    float64
}

type StatusChange struct {
	Status    Status
	Timestamp time.Time
	Note      string
}

type Order struct {
	ID      string
	Code    string
	OwnerID string

	Customer Customer
	Items    []LineItem
	Pricing  Pricing

	Status        Status
	PaymentStatus PaymentStatus

	PaymentMethod  string
	ShippingMethod string
	TrackingNumber string

	EstimatedDelivery time.Time
	DeliveredAt       *time.Time
	Notes             string

	StatusHistory []StatusChange

	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotCancellable    = errors.New("order cannot be cancelled")
	ErrCodeExhausted     = errors.New("order code generation exhausted")
	ErrForbidden         = errors.New("access denied")
)

// InsufficientStockError carries enough detail for the storefront to tell
// the shopper what to adjust.
type InsufficientStockError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// CanTransition reports whether the lifecycle graph has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the order to the next status, appends the change to the
// history log and stamps DeliveredAt the first time the order reaches
// delivered. The history log is append-only; callers must never trim it.
func (o *Order) Transition(to Status, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &IllegalTransitionError{From: o.Status, To: to}
	}

	o.Status = to
	o.UpdatedAt = now
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:    to,
		Timestamp: now,
		Note:      fmt.Sprintf("Status changed to %s", to),
	})

	if to == StatusDelivered && o.DeliveredAt == nil {
		t := now
		o.DeliveredAt = &t
	}
	if to == StatusRefunded {
		o.PaymentStatus = PaymentRefunded
	}
	return nil
}

func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

func (o *Order) CanBeReturned(now time.Time) bool {
	return o.Status == StatusDelivered &&
		o.DeliveredAt != nil &&
		now.Sub(*o.DeliveredAt) < returnWindow
}

type ProgressStep struct {
	Status    Status
	Completed bool
	Active    bool
}

type Progress struct {
	Current Status
	Percent float64
	Steps   []ProgressStep
}

// Progress maps the current status onto the happy path for progress-bar
// rendering. Cancelled and refunded orders report zero percent.
func (o *Order) Progress() Progress {
	idx := -1
	for i, s := range happyPath {
		if s == o.Status {
			idx = i
			break
		}
	}

	p := Progress{Current: o.Status, Steps: make([]ProgressStep, len(happyPath))}
	if idx >= 0 {
		p.Percent = float64(idx+1) / float64(len(happyPath)) * 100
	}
	for i, s := range happyPath {
		p.Steps[i] = ProgressStep{
			Status:    s,
			Completed: idx >= 0 && i <= idx,
			Active:    i == idx,
		}
	}
	return p
}

func (o *Order) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Order) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	return dec.Decode(o)
}

func init() {
	gob.Register(Order{})
	gob.Register(Customer{})
	gob.Register(LineItem{})
	gob.Register(StatusChange{})
}
