package hub

import (
	"Parley/internal/event"
	"Parley/internal/reactive"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// Stop must be safe while reader goroutines are still pushing into the
// inbound queue. The workers drain and exit via ctx; the queue itself is
// never closed underneath a sender.
func TestStopWithInFlightInbound(t *testing.T) {
	h := NewHub(reactive.NewEngine(zap.NewNop()), Services{}, nil)

	// A pre-closed session: handler replies become no-ops.
	c := &Client{ID: "session", closed: true}

	stop := make(chan struct{})
	var senders sync.WaitGroup
	for i := 0; i < 4; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for {
				select {
				case <-stop:
					return
				case h.inbound <- inboundMessage{event: event.WsEvent{Event: "noop"}, client: c}:
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	h.Stop()
	close(stop)
	senders.Wait()
}
