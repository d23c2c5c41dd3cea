package domain

import "time"

type BusinessType string

const (
	BusinessEcommerce   BusinessType = "ecommerce"
	BusinessDelivery    BusinessType = "delivery"
	BusinessBar         BusinessType = "bar"
	BusinessBarDelivery BusinessType = "bar_delivery"
)

// Tenant is a merchant account, the root of data isolation. Every operation
// in the platform takes the tenant (or its id) as an explicit argument.
type Tenant struct {
	ID                int64
	Name              string
	Slug              string
	BusinessType      BusinessType
	MercadoPagoAPIKey string // empty means payments are not configured
	WhatsAppNumber    string
	IsOpen            bool
	TableCount        int
	AllowServiceFee   bool
	PasswordHash      string // re-auth guard for destructive operations
	CreatedAt         time.Time
}
