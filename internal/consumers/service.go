package consumers

import (
	"context"
	"log/slog"

	"smarthub/internal/config"
	"smarthub/internal/logger"
	"smarthub/internal/messaging"
	"smarthub/internal/models"

	"github.com/nats-io/stan.go"
)

const queueGroup = "activity"

type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	return &ConsumerService{
		nats:     natsClient,
		handlers: NewHandlers(logger.WithFields("queue", queueGroup)),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		handler stan.MsgHandler
	}{
		{models.EventReservationConfirmed, cs.handlers.HandleReservationConfirmed},
		{models.EventCheckInCompleted, cs.handlers.HandleCheckInCompleted},
	}

	for _, s := range subscriptions {
		sub, err := cs.nats.SubscribeQueue(s.subject, queueGroup, s.handler)
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

// Shutdown closes the subscriptions without unsubscribing, so the durable
// queue keeps its position for the next start.
func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- cs.nats.Close() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
