// Package notify delivers fire-and-forget events to interested
// listeners (socket fan-out, admin dashboards). Delivery is best
// effort and never part of a request's correctness contract.
package notify

import (
	"context"
	"sync"

	"github.com/almaz-dev/eduspin/internal/logger"
)

// Well known event names
const (
	EventSpinResult          = "spin.result"
	EventSpinBigWin          = "spin.bigwin"
	EventSpinControlChanged  = "spin.control_changed"
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalVerified  = "withdrawal.verified"
	EventWithdrawalRejected  = "withdrawal.rejected"
)

type Broadcaster interface {
	// Broadcast publishes the event to whoever listens. Implementations
	// must never fail the caller: errors are swallowed and logged.
	Broadcast(ctx context.Context, event string, payload any)
}

// LogBroadcaster writes events to the log. It stands in for a real
// socket gateway, which consumes the same Broadcaster interface.
type LogBroadcaster struct {
	logger logger.Logger
}

func NewLogBroadcaster(l logger.Logger) *LogBroadcaster {
	return &LogBroadcaster{logger: l}
}

func (b *LogBroadcaster) Broadcast(_ context.Context, event string, payload any) {
	b.logger.Info("broadcast event", "event", event, "payload", payload)
}

// Recorder keeps every published event in memory. Test helper.
type Recorder struct {
	mu     sync.Mutex
	events []RecordedEvent
}

type RecordedEvent struct {
	Event   string
	Payload any
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Broadcast(_ context.Context, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedEvent{Event: event, Payload: payload})
}

func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}
