package jobs

import (
	"context"
	"log"
	"time"
)

// CompletionWarner sends the warnings for proposals nearing auto-completion
// and reports how many were sent.
type CompletionWarner interface {
	WarnPendingAutoCompletions(ctx context.Context) (int, error)
}

// CompletionReminder periodically warns requesters that accepted work is
// about to complete on its own. It never completes anything itself:
// completion is still evaluated when the work request is read.
type CompletionReminder struct {
	warner   CompletionWarner
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// NewCompletionReminder creates a new reminder job
func NewCompletionReminder(warner CompletionWarner, interval time.Duration) *CompletionReminder {
	return &CompletionReminder{
		warner:   warner,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the reminder loop until Stop is called
func (cr *CompletionReminder) Start() {
	defer close(cr.done)
	log.Printf("[CompletionReminder] Starting reminder job (interval: %v)", cr.interval)

	ticker := time.NewTicker(cr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cr.runOnce()
		case <-cr.stopChan:
			log.Println("[CompletionReminder] Stopping reminder job")
			return
		}
	}
}

// Stop stops the reminder loop and waits for it to exit
func (cr *CompletionReminder) Stop() {
	close(cr.stopChan)
	<-cr.done
}

func (cr *CompletionReminder) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sent, err := cr.warner.WarnPendingAutoCompletions(ctx)
	if err != nil {
		log.Printf("[CompletionReminder] Error sending warnings: %v", err)
		return
	}
	if sent > 0 {
		log.Printf("[CompletionReminder] Sent %d auto-completion warnings", sent)
	}
}
