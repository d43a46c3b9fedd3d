package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/model"
)

// Dispatcher implements Notifier by handing events to a Sender on a
// background goroutine. The triggering operation returns immediately; a
// failed or slow send never rolls back or blocks the state change.
type Dispatcher struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher around a sender. timeout bounds each
// delivery attempt; zero means 10 seconds.
func NewDispatcher(sender Sender, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, logger: logger, timeout: timeout}
}

// dispatch sends the event asynchronously. The request context is not
// carried over: the request finishing must not cancel the delivery.
func (d *Dispatcher) dispatch(ev Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, ev); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("kind", ev.Kind),
				zap.String("traveler_number", ev.Traveler.TravelerNumber),
				zap.Error(err),
			)
		}
	}()
}

// NotifyTravelerCreated implements Notifier.
func (d *Dispatcher) NotifyTravelerCreated(_ context.Context, t model.Traveler, creator model.Actor) {
	d.dispatch(Event{Kind: KindTravelerCreated, Traveler: t, Actor: creator})
}

// NotifyApprovalRequested implements Notifier.
func (d *Dispatcher) NotifyApprovalRequested(_ context.Context, t model.Traveler, requester model.Actor, reqType model.RequestType) {
	d.dispatch(Event{Kind: KindApprovalRequested, Traveler: t, Actor: requester, RequestType: reqType})
}

// NotifyDecision implements Notifier.
func (d *Dispatcher) NotifyDecision(_ context.Context, t model.Traveler, a model.Approval, approver model.Actor) {
	d.dispatch(Event{Kind: KindDecision, Traveler: t, Approval: &a, Actor: approver})
}

// Close waits for in-flight deliveries to finish. Used on shutdown.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}
