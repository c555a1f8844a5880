package bridge

import (
	"context"
	"sync/atomic"

	"github.com/nalam-kiosk/rfid-services/internal/bridgesvc/reader"

	log "github.com/sirupsen/logrus"
)

// Bridge decouples the serial read loop from relay delivery with a bounded
// queue, so a slow or down ingest service can never stall the reader. When
// the queue is full the scan is dropped and counted.
type Bridge struct {
	queue   chan reader.ScanEvent
	dropped atomic.Int64
	send    func(ctx context.Context, uid string) error
}

func NewBridge(queueSize int, send func(ctx context.Context, uid string) error) *Bridge {
	if queueSize <= 0 {
		queueSize = 32
	}

	return &Bridge{
		queue: make(chan reader.ScanEvent, queueSize),
		send:  send,
	}
}

// Enqueue never blocks; it is safe to call from the reader's emit callback.
func (b *Bridge) Enqueue(ev reader.ScanEvent) {
	select {
	case b.queue <- ev:
	default:
		n := b.dropped.Add(1)
		log.Warnf("relay queue full, dropped scan %s (%d dropped total)", ev.UID, n)
	}
}

// Dropped reports how many scans were discarded because the queue was full.
func (b *Bridge) Dropped() int64 {
	return b.dropped.Load()
}

// Run drains the queue one scan at a time, preserving tap order for the
// scans that were not dropped. Delivery failures are logged and swallowed.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			if err := b.send(ctx, ev.UID); err != nil {
				log.Errorf("[ERROR] backend delivery failed: %v", err)
			}
		}
	}
}
