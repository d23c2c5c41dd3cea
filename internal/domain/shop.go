package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID       int64
	TenantID int64
	Name     string
}

type Product struct {
	ID          int64
	TenantID    int64
	CategoryID  int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// Cart holds pending shop line items for a guest identified by phone number.
// Its UUID doubles as the payment external reference.
type Cart struct {
	ID          uuid.UUID
	PhoneNumber string
	Items       []CartItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CartItem struct {
	ID          int64
	CartID      uuid.UUID
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is the immutable snapshot of a paid cart. Item names and prices are
// captured at purchase time and never follow later product edits.
type Order struct {
	ID            int64
	TenantID      int64
	CustomerPhone string
	TotalAmount   decimal.Decimal
	Status        OrderStatus
	Items         []OrderItem
	CreatedAt     time.Time
}

type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}
