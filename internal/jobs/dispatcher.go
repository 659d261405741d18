package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"outsourcing-market/internal/notify"
)

// Dispatcher delivers notification messages to outbound channels on a pool
// of worker goroutines. Delivery is best effort: a full queue drops the
// message and failed sends are logged after the last retry.
type Dispatcher struct {
	channels    []notify.Channel
	queue       chan notify.Message
	workerCount int
	maxAttempts int
	backoff     time.Duration

	mu      sync.RWMutex
	stopped bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given queue size and worker count.
func NewDispatcher(channels []notify.Channel, queueSize, workerCount int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if workerCount <= 0 {
		workerCount = 2
	}
	return &Dispatcher{
		channels:    channels,
		queue:       make(chan notify.Message, queueSize),
		workerCount: workerCount,
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
}

// SetRetry overrides the retry policy.
func (d *Dispatcher) SetRetry(maxAttempts int, backoff time.Duration) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	d.maxAttempts = maxAttempts
	d.backoff = backoff
}

// Start launches the worker goroutines
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	log.Printf("[Dispatcher] Starting %d workers (%d channels)", d.workerCount, len(d.channels))
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop stops accepting messages, drains the queue and waits for workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	log.Println("[Dispatcher] Stopped")
}

// Enqueue adds a message without blocking. It returns false if the message
// was dropped.
func (d *Dispatcher) Enqueue(m notify.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		log.Printf("[Dispatcher] Dropping %s: dispatcher stopped", m.EventType)
		return false
	}

	select {
	case d.queue <- m:
		return true
	default:
		log.Printf("[Dispatcher] Warning: queue full, dropping %s", m.EventType)
		return false
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for m := range d.queue {
		d.deliver(m)
	}
}

func (d *Dispatcher) deliver(m notify.Message) {
	for _, ch := range d.channels {
		if !ch.Accepts(m) {
			continue
		}

		var err error
		for attempt := 1; attempt <= d.maxAttempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			err = ch.Send(ctx, m)
			cancel()
			if err == nil {
				break
			}
			if attempt < d.maxAttempts {
				time.Sleep(d.backoff * time.Duration(attempt))
			}
		}
		if err != nil {
			log.Printf("[Dispatcher] Failed to deliver %s via %s: %v", m.EventType, ch.Name(), err)
		}
	}
}
