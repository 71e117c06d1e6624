package detector

import (
	"context"
	"sync"

	"github.com/genricoloni/nowplaying/internal/domain"
)

const eventBufferSize = 32

// Subscription is the handle returned to watchers.
// Events are delivered in emission order on a single channel fed directly by the detector.
type Subscription struct {
	events chan domain.EventItem
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches d in its own goroutine and returns the handle feeding from it.
// The loop ends when ctx is done or Close is called.
func Start(ctx context.Context, d *Detector, nudges <-chan struct{}) *Subscription {
	runCtx, cancel := context.WithCancel(ctx)
	events := make(chan domain.EventItem, eventBufferSize)
	sub := &Subscription{
		events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		d.Run(runCtx, events, nudges)
	}()

	return sub
}

// Events returns the stream. It is closed after the sampling loop exits.
func (s *Subscription) Events() <-chan domain.EventItem {
	return s.events
}

// Close stops sampling at the loop's next wake-up. An in-flight native call is not interrupted.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Done is closed once the sampling goroutine has exited
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
