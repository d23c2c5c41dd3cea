package notifier

import (
	"strings"
	"testing"

	"storefront-system/internal/domain"
)

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		name  string
		event domain.OrderCreatedEvent
		want  []string
	}{
		{
			"delivery order",
			domain.OrderCreatedEvent{
				Channel:       domain.ChannelDelivery,
				OrderID:       42,
				CustomerName:  "Maria",
				CustomerPhone: "5511999990000",
				Address:       "Rua A, 10",
				Items: []domain.OrderEventItem{
					{Name: "X-Burger (*Bacon)", Quantity: 2, Price: "24.00"},
				},
				Total: "54.00",
			},
			[]string{"*Novo pedido* #42", "Cliente: Maria", "Rua A, 10", "2x X-Burger (*Bacon) - R$ 24.00", "*Total: R$ 54.00*"},
		},
		{
			"bar comanda",
			domain.OrderCreatedEvent{
				Channel:     domain.ChannelBar,
				OrderID:     7,
				TableNumber: 3,
				Items:       []domain.OrderEventItem{{Name: "Chopp", Quantity: 4, Price: "8.00"}},
				Total:       "44.00",
			},
			[]string{"mesa 3", "4x Chopp - R$ 8.00", "*Total: R$ 44.00*"},
		},
		{
			"shop sale",
			domain.OrderCreatedEvent{
				Channel: domain.ChannelShop,
				OrderID: 9,
				Total:   "25.50",
			},
			[]string{"*Nova venda* #9", "*Total: R$ 25.50*"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := RenderMessage(tt.event)
			for _, want := range tt.want {
				if !strings.Contains(msg, want) {
					t.Errorf("message missing %q:\n%s", want, msg)
				}
			}
		})
	}
}
