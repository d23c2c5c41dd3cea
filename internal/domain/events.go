package domain

import "time"

// OrderChannel tags which storefront produced an order event. It is the last
// segment of the routing key order.created.<channel>.
type OrderChannel string

const (
	ChannelShop     OrderChannel = "shop"
	ChannelDelivery OrderChannel = "delivery"
	ChannelBar      OrderChannel = "bar"
)

type OrderEventItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// OrderCreatedEvent is published to the orders exchange after an order row is
// committed. Amounts are two-decimal strings in the tenant's local currency.
type OrderCreatedEvent struct {
	Channel       OrderChannel     `json:"channel"`
	OrderID       int64            `json:"order_id"`
	TenantID      int64            `json:"tenant_id"`
	TenantName    string           `json:"tenant_name"`
	CustomerName  string           `json:"customer_name,omitempty"`
	CustomerPhone string           `json:"customer_phone,omitempty"`
	Address       string           `json:"address,omitempty"`
	TableNumber   int              `json:"table_number,omitempty"`
	Items         []OrderEventItem `json:"items"`
	Total         string           `json:"total"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (e OrderCreatedEvent) RoutingKey() string {
	return "order.created." + string(e.Channel)
}
