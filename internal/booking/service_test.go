package booking

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/bus-seat-booking/internal/model"
	"github.com/iliyamo/bus-seat-booking/internal/queue"
	"github.com/iliyamo/bus-seat-booking/internal/repository"
)

// stalledPublisher never reaches its broker; it waits for ctx to end.
type stalledPublisher struct {
	hadDeadline chan bool
}

func (p *stalledPublisher) PublishOrderFinalized(ctx context.Context, _ queue.OrderFinalizedEvent) error {
	_, ok := ctx.Deadline()
	p.hadDeadline <- ok
	<-ctx.Done()
	return ctx.Err()
}

func (p *stalledPublisher) PublishTicketChanged(ctx context.Context, _ queue.TicketChangedEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledPublisherDoesNotHoldFinalize(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := repository.NewMemoryStore()
	pub := &stalledPublisher{hadDeadline: make(chan bool, 1)}
	svc := NewService(store, Options{
		Publisher:         pub,
		SideEffectTimeout: 20 * time.Millisecond,
		Logger:            logger,
	})
	store.PutRoute(model.Route{ID: 1, Capacity: 2})
	o := store.PutOrder(model.Order{RouteID: 1, Quantity: 1, Status: model.OrderCreated})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Finalize(context.Background(), o.ID, TriggerDirect)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Finalize blocked on the publisher")
	}
	if !<-pub.hadDeadline {
		t.Fatal("publish ran without a deadline")
	}
	if got, _ := store.FindOrder(context.Background(), o.ID); got.Status != model.OrderPaid {
		t.Fatalf("order status = %q, want paid", got.Status)
	}
}
