package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lestrrat-go/backoff/v2"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// MinUIDLength filters empty lines and noise bursts from the reader.
const MinUIDLength = 4

// ScanEvent is one tag read, alive only until it is handed downstream.
type ScanEvent struct {
	Raw string // line as received, before trimming
	UID string
}

// OpenPort opens the serial device the RFID reader is attached to.
func OpenPort(path string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", path, err)
	}

	return port, nil
}

// ReopenWithBackoff reopens the serial device under a bounded retry
// policy. A canceled context returns ctx.Err(); an exhausted budget
// returns the last open error.
func ReopenWithBackoff(ctx context.Context, path string, baudRate int, policy backoff.Policy) (serial.Port, error) {
	var lastErr error

	b := policy.Start(ctx)
	for backoff.Continue(b) {
		port, err := OpenPort(path, baudRate)
		if err == nil {
			return port, nil
		}
		lastErr = err
		log.Warnf("reopen of %s failed: %v", path, err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return nil, fmt.Errorf("could not reopen %s: %w", path, lastErr)
}

// TagReader turns a line-delimited byte stream into ScanEvents. The stream
// is normally a serial port but any io.Reader works, which is what the
// tests rely on.
type TagReader struct {
	src  io.Reader
	emit func(ScanEvent)
}

func NewTagReader(src io.Reader, emit func(ScanEvent)) *TagReader {
	return &TagReader{
		src:  src,
		emit: emit,
	}
}

// Run reads until the stream ends, the context is canceled, or the device
// errors. Each accepted line is handed to emit synchronously, so a slow
// consumer delays the next read rather than piling up events here.
func (t *TagReader) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(t.src)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw := scanner.Text()
		uid := strings.TrimSpace(raw)

		if len(uid) < MinUIDLength {
			// noise or an empty line, not a tag
			continue
		}

		log.Infof("[TAG READ] UID: %s", uid)
		t.emit(ScanEvent{Raw: raw, UID: uid})
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("serial read failed: %w", err)
	}

	return nil
}
