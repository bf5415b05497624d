// Package metrics emits per-event-type counters. Emission is fire and
// forget: the pipeline hands an event type to a buffered channel and moves
// on; a drain worker increments the counters. A full buffer drops the
// increment with a log line and never affects record outcomes.
package metrics

import (
	"sync"

	"github.com/ignite/feedback-processor/internal/domain"
	"github.com/ignite/feedback-processor/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultBuffer = 1024

// Emitter counts processed feedback events by type.
type Emitter struct {
	events  chan domain.EventType
	counter *prometheus.CounterVec
	dropped prometheus.Counter

	stopOnce sync.Once
	done     chan struct{}
	drained  chan struct{}
}

// NewEmitter creates an emitter and registers its collectors. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewEmitter(reg prometheus.Registerer) *Emitter {
	e := &Emitter{
		events: make(chan domain.EventType, defaultBuffer),
		counter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Feedback events processed, by event type.",
		}, []string{"event_type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedback_metric_drops_total",
			Help: "Metric increments dropped because the emit buffer was full.",
		}),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	reg.MustRegister(e.counter, e.dropped)
	return e
}

// Start launches the drain worker.
func (e *Emitter) Start() {
	go func() {
		defer close(e.drained)
		for {
			select {
			case t := <-e.events:
				e.counter.WithLabelValues(string(t)).Inc()
			case <-e.done:
				// Drain whatever is already buffered, then exit.
				for {
					select {
					case t := <-e.events:
						e.counter.WithLabelValues(string(t)).Inc()
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop shuts the drain worker down after flushing the buffer.
func (e *Emitter) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
	<-e.drained
}

// Emit records one event, never blocking the caller.
func (e *Emitter) Emit(t domain.EventType) {
	select {
	case e.events <- t:
	default:
		e.dropped.Inc()
		logger.Warn("metric emit buffer full, dropping increment", "event_type", string(t))
	}
}
