package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DeliveryCategory struct {
	ID       int64
	TenantID int64
	Name     string
}

type MenuItem struct {
	ID          int64
	TenantID    int64
	CategoryID  int64
	Name        string
	Description string
	Price       decimal.Decimal
	IsAvailable bool
}

type DeliveryZone struct {
	ID           int64
	TenantID     int64
	Neighborhood string
	DeliveryFee  decimal.Decimal
}

// DeliveryOptional is a priced add-on constrained to one menu category.
type DeliveryOptional struct {
	ID         int64
	TenantID   int64
	CategoryID int64
	Name       string
	Price      decimal.Decimal
}

// Combo is a fixed-price bundle whose contents are chosen per order from
// category-constrained slots.
type Combo struct {
	ID          int64
	TenantID    int64
	Name        string
	Description string
	Price       decimal.Decimal
	IsAvailable bool
	Slots       []ComboSlot
}

type ComboSlot struct {
	ID                int64
	ComboID           int64
	AllowedCategoryID int64
}

// DeliveryCart is the persisted guest cart, keyed by a stable guest token.
// Entries map encoded cart keys to quantities.
type DeliveryCart struct {
	ID         uuid.UUID
	TenantID   int64
	GuestToken uuid.UUID
	Entries    []DeliveryCartEntry
	UpdatedAt  time.Time
}

type DeliveryCartEntry struct {
	Key      CartKey
	Quantity int
}

type PaymentMethod string

const (
	PayCash PaymentMethod = "dinheiro"
	PayCard PaymentMethod = "cartao"
	PayPix  PaymentMethod = "pix"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryConfirmed DeliveryStatus = "confirmed"
	DeliveryOnTheWay  DeliveryStatus = "on_the_way"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

type DeliveryOrder struct {
	ID               int64
	TenantID         int64
	CustomerName     string
	CustomerWhatsApp string
	DeliveryAddress  string
	ZoneID           *int64
	ZoneName         string
	PaymentMethod    PaymentMethod
	ChangeFor        *decimal.Decimal
	Observations     string
	ItemsTotal       decimal.Decimal
	DeliveryFee      decimal.Decimal
	FinalTotal       decimal.Decimal
	Status           DeliveryStatus
	Items            []DeliveryOrderItem
	CreatedAt        time.Time
}

type DeliveryOrderItem struct {
	ID       int64
	OrderID  int64
	ItemName string
	Quantity int
	Price    decimal.Decimal
	// OriginalCartKey lets "repeat order" rebuild an equivalent cart.
	// Empty for POS-entered lines.
	OriginalCartKey string
}
