// Package notifier consumes order events and renders the WhatsApp message a
// merchant receives for each new order. Actual message delivery goes through
// the merchant's own WhatsApp link, so the notifier logs the rendered text
// and acks.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"storefront-system/internal/connections/rabbitmq"
	"storefront-system/internal/domain"
)

type Notifier struct {
	rmq    *rabbitmq.Client
	logger zerolog.Logger
}

func New(rmq *rabbitmq.Client, logger zerolog.Logger) *Notifier {
	return &Notifier{rmq: rmq, logger: logger}
}

// Run consumes the notifications queue until ctx is cancelled. Messages that
// fail to decode are dropped; everything else is acked after rendering.
func (n *Notifier) Run(ctx context.Context) error {
	deliveries, err := n.rmq.Consume(rabbitmq.NotificationsQueue, "notifier", 10)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	n.logger.Info().Str("queue", rabbitmq.NotificationsQueue).Msg("notifier consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			var event domain.OrderCreatedEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				n.logger.Error().Err(err).Msg("failed to decode order event, dropping")
				_ = msg.Nack(false, false)
				continue
			}
			n.logger.Info().
				Str("channel", string(event.Channel)).
				Int64("order_id", event.OrderID).
				Int64("tenant_id", event.TenantID).
				Str("message", RenderMessage(event)).
				Msg("order notification")
			_ = msg.Ack(false)
		}
	}
}

// RenderMessage builds the order summary text in the format sent to the
// merchant's WhatsApp.
func RenderMessage(e domain.OrderCreatedEvent) string {
	var b strings.Builder

	switch e.Channel {
	case domain.ChannelBar:
		fmt.Fprintf(&b, "*Comanda fechada* - mesa %d\n", e.TableNumber)
	case domain.ChannelDelivery:
		fmt.Fprintf(&b, "*Novo pedido* #%d\n", e.OrderID)
	default:
		fmt.Fprintf(&b, "*Nova venda* #%d\n", e.OrderID)
	}

	if e.CustomerName != "" {
		fmt.Fprintf(&b, "Cliente: %s\n", e.CustomerName)
	}
	if e.CustomerPhone != "" {
		fmt.Fprintf(&b, "Contato: %s\n", e.CustomerPhone)
	}
	if e.Address != "" {
		fmt.Fprintf(&b, "Endereço: %s\n", e.Address)
	}

	b.WriteString("\n")
	for _, it := range e.Items {
		fmt.Fprintf(&b, "%dx %s - R$ %s\n", it.Quantity, it.Name, it.Price)
	}
	fmt.Fprintf(&b, "\n*Total: R$ %s*", e.Total)
	return b.String()
}
