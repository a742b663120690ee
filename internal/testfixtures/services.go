package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/workstation-scheduler/internal/application"
	"github.com/example/workstation-scheduler/internal/events"
	"github.com/example/workstation-scheduler/internal/persistence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Events      *EventRecorder
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Events:      &EventRecorder{},
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if clock != nil {
			factory.Clock = clock
		}
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		if generator != nil {
			factory.IDGenerator = generator
		}
	}
}

// ReservationServiceDeps captures dependencies for constructing a reservation
// service. Zero fields fall back to the factory defaults; Location defaults to UTC.
type ReservationServiceDeps struct {
	Reservations persistence.ReservationRepository
	Cache        application.AvailabilityCache
	Publisher    events.Publisher
	Location     *time.Location
	Logger       *slog.Logger
}

// NewReservationService builds a reservation service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = f.Events
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return application.NewReservationService(application.ReservationServiceDeps{
		Reservations: deps.Reservations,
		Cache:        deps.Cache,
		Publisher:    publisher,
		IDGenerator:  f.IDGenerator.NextFunc(),
		Now:          f.Clock.NowFunc(),
		Location:     location,
		Logger:       deps.Logger,
	})
}

// NewAuthService builds an auth service over users with cheap PIN hashing.
func (f *ServiceFactory) NewAuthService(users application.UserStore) *application.AuthService {
	return application.NewAuthService(users, nil, FastPINHasher, f.Clock.NowFunc(), nil)
}

// FastPINHasher hashes PINs with minimal argon2id cost for tests.
func FastPINHasher(pin string) (string, error) {
	return application.CreatePINHash(pin, application.Argon2idParams{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
}

// EventRecorder is an events.Publisher that keeps every event in memory.
type EventRecorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

// Publish implements events.Publisher.
func (r *EventRecorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// FailWith makes subsequent Publish calls record the event and return err.
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Events returns the recorded events in publish order.
func (r *EventRecorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *EventRecorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Reset forgets recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
