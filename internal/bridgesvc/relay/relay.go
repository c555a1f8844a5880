package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nalam-kiosk/rfid-services/internal/comm"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"

	"github.com/lestrrat-go/backoff/v2"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	URL           string // full ingest endpoint, e.g. http://localhost:3000/api/log-rfid
	KioskLocation string
	Timeout       time.Duration // per-attempt HTTP timeout
	MinBackoff    time.Duration
	MaxRetries    int
}

// Relay delivers one scan per call to the ingest service. Delivery is best
// effort: after the retry budget is spent the scan is dropped and logged.
type Relay struct {
	cfg    Config
	client *http.Client
	policy backoff.Policy
}

func NewRelay(cfg Config) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	return &Relay{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		policy: backoff.Exponential(
			backoff.WithMinInterval(cfg.MinBackoff),
			backoff.WithJitterFactor(0.1),
			backoff.WithMaxRetries(cfg.MaxRetries),
		),
	}
}

// Send posts one UID to the ingest endpoint. The returned error is for the
// caller's log only; the bridge never escalates it to the reader loop.
func (r *Relay) Send(ctx context.Context, uid string) (*models.ScanRecord, error) {
	loc := r.cfg.KioskLocation
	req := comm.LogScanRequest{
		CardUID:       uid,
		KioskLocation: &loc,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not marshal scan request: %w", err)
	}

	var lastErr error
	b := r.policy.Start(ctx)
	for backoff.Continue(b) {
		rec, err := r.post(ctx, body)
		if err == nil {
			log.Infof("[SUCCESS] scan %s saved with id %d", uid, rec.ID)
			return rec, nil
		}

		lastErr = err
		log.Warnf("relay attempt failed for UID %s: %v", uid, err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return nil, fmt.Errorf("relay gave up on UID %s: %w", uid, lastErr)
}

func (r *Relay) post(ctx context.Context, body []byte) (*models.ScanRecord, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ingest service returned %d", resp.StatusCode)
	}

	var envelope comm.LogScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("could not decode ingest response: %w", err)
	}
	if envelope.Data == nil {
		// a 2xx from a proxy or captive portal can carry an empty body
		return nil, fmt.Errorf("ingest response missing data")
	}

	return envelope.Data, nil
}
