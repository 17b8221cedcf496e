package entities

// Product is owned by the catalog service; this service reads it for price
// and stock and adjusts stock through reservations only.
type Product struct {
	ID    string
	Name  string
	Image string
	Price float64
	Stock int
}
