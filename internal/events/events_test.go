package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/workstation-scheduler/internal/calendar"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func sampleEvent() Event {
	return Event{
		Type:          ReservationSplit,
		ReservationID: "r-1",
		ResourceID:    "ws-1",
		UserID:        "u-1",
		Range:         calendar.Range{Start: calendar.MustParseDate("2024-03-01"), End: calendar.MustParseDate("2024-03-10")},
		RelatedIDs:    []string{"r-2", "r-3"},
		Actor:         "admin-1",
		OccurredAt:    time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
	}
}

func TestAMQPPublisherPublish(t *testing.T) {
	t.Parallel()

	ch := &fakeChannel{}
	p := newAMQPPublisher(ch, "workstation.reservations")

	if err := p.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if ch.exchange != "workstation.reservations" || ch.key != "reservation.split" {
		t.Fatalf("expected exchange/key workstation.reservations/reservation.split, got %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent || ch.msg.ContentType != "application/json" {
		t.Fatalf("expected persistent JSON message, got %+v", ch.msg)
	}

	var decoded map[string]any
	if err := json.Unmarshal(ch.msg.Body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	rng, _ := decoded["range"].(map[string]any)
	if rng["start_date"] != "2024-03-01" || rng["end_date"] != "2024-03-10" {
		t.Fatalf("expected dates in body, got %v", decoded["range"])
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("expected channel to be closed, got err=%v closed=%v", err, ch.closed)
	}
}

func TestAMQPPublisherWrapsErrors(t *testing.T) {
	t.Parallel()

	brokerErr := errors.New("channel closed")
	p := newAMQPPublisher(&fakeChannel{err: brokerErr}, "x")
	if err := p.Publish(context.Background(), sampleEvent()); !errors.Is(err, brokerErr) {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logPub := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))
	first := errors.New("first")

	err := Multi{failingPublisher{err: first}, nil, logPub}.Publish(context.Background(), sampleEvent())
	if !errors.Is(err, first) {
		t.Fatalf("expected joined error to contain first, got %v", err)
	}
	if !strings.Contains(buf.String(), "type=reservation.split") {
		t.Fatalf("expected log publisher to still run, got %q", buf.String())
	}
}
