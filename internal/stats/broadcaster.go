package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing snapshots, never blocking the publisher.
const subscriberBuffer = 8

// Broadcaster periodically builds snapshots and fans them out to subscribers.
type Broadcaster struct {
	agg      *Aggregator
	interval time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	subscribers map[chan *Snapshot]struct{}
	latest      *Snapshot
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewBroadcaster creates a broadcaster publishing every interval.
func NewBroadcaster(agg *Aggregator, interval time.Duration, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		agg:         agg,
		interval:    interval,
		logger:      logger.Named("stats"),
		subscribers: make(map[chan *Snapshot]struct{}),
	}
}

// Subscribe registers a new snapshot receiver. The channel is closed on
// Unsubscribe or Stop. If a snapshot has already been published the
// subscriber gets it immediately, so new dashboard clients never wait a full
// interval for their first frame.
func (b *Broadcaster) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.latest != nil {
		ch <- b.latest
	}
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes a receiver and closes its channel.
func (b *Broadcaster) Unsubscribe(ch <-chan *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub == ch {
			delete(b.subscribers, sub)
			close(sub)
			return
		}
	}
}

// Publish builds a snapshot now, delivers it to all subscribers and returns
// it. Slow subscribers are skipped, not waited on.
func (b *Broadcaster) Publish() *Snapshot {
	snap := b.agg.Snapshot()

	b.mu.Lock()
	b.latest = snap
	for sub := range b.subscribers {
		select {
		case sub <- snap:
		default:
			b.logger.Debug("dropping snapshot for slow subscriber")
		}
	}
	b.mu.Unlock()

	return snap
}

// Latest returns the most recently published snapshot, building one on the
// spot if nothing has been published yet.
func (b *Broadcaster) Latest() *Snapshot {
	b.mu.Lock()
	latest := b.latest
	b.mu.Unlock()

	if latest != nil {
		return latest
	}
	return b.Publish()
}

// Start launches the periodic publish loop.
func (b *Broadcaster) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true
	done := b.done
	b.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				b.Publish()
			}
		}
	}()

	b.logger.Info("stats broadcaster started", zap.Duration("interval", b.interval))
}

// Stop terminates the publish loop and closes all subscriber channels.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.cancel()
	done := b.done
	b.running = false
	b.mu.Unlock()

	<-done

	b.mu.Lock()
	for sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = make(map[chan *Snapshot]struct{})
	b.mu.Unlock()
}
