package service

import (
	"context"
	"time"

	"smarthub/internal/metrics"
	"smarthub/internal/notify"
	"smarthub/internal/repository"
)

// Encoder renders a credential payload as a scannable image.
type Encoder interface {
	Encode(payload string) ([]byte, error)
}

// Notifier delivers a confirmation message. It must return an error when the
// message was not handed to the transport.
type Notifier interface {
	Send(ctx context.Context, msg *notify.Message) error
}

// Publisher emits domain events after a transaction has committed.
type Publisher interface {
	Publish(subject string, data any) error
}

// EventSearcher answers full-text catalog queries with event ids.
type EventSearcher interface {
	SearchEventIDs(ctx context.Context, query string, limit int) ([]int64, error)
}

type Deps struct {
	Ledger        repository.Ledger
	Encoder       Encoder
	Notifier      Notifier
	Publisher     Publisher     // optional
	Searcher      EventSearcher // optional
	Metrics       *metrics.Metrics
	NotifyTimeout time.Duration
	Now           func() time.Time
}

type Services struct {
	Events     *EventService
	Facilities *FacilityService
	Parking    *ParkingService
	CheckIn    *CheckInService
}

func NewServices(deps Deps) *Services {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if deps.NotifyTimeout <= 0 {
		deps.NotifyTimeout = 10 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	o := &Orchestrator{
		ledger:    deps.Ledger,
		encoder:   deps.Encoder,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		timeout:   deps.NotifyTimeout,
		now:       deps.Now,
	}

	return &Services{
		Events:     NewEventService(o, deps.Searcher),
		Facilities: NewFacilityService(o),
		Parking:    NewParkingService(o),
		CheckIn:    NewCheckInService(o),
	}
}
