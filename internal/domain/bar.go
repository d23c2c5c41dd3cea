package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BarCategory struct {
	ID       int64
	TenantID int64
	Name     string
}

type BarMenuItem struct {
	ID          int64
	TenantID    int64
	CategoryID  int64
	Name        string
	Price       decimal.Decimal
	IsAvailable bool
}

type ComandaStatus string

const (
	ComandaOpen   ComandaStatus = "aberta"
	ComandaClosed ComandaStatus = "fechada"
	ComandaPaid   ComandaStatus = "paga"
)

// Comanda is the running tab of one table. At most one open comanda exists
// per (tenant, table); the total is recomputed on every item mutation and
// the 10% service fee is applied only at calculation time, never stacked.
type Comanda struct {
	ID          int64
	TenantID    int64
	TableNumber int
	Status      ComandaStatus
	ServiceFee  bool
	Total       decimal.Decimal
	Items       []ComandaItem
	OpenedAt    time.Time
	ClosedAt    *time.Time
}

type ComandaItem struct {
	ID        int64
	ComandaID int64
	ItemID    int64
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
	Note      string
}

func (i ComandaItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
