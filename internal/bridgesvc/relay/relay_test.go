package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nalam-kiosk/rfid-services/internal/comm"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"
)

func successBody(id int64, uid, loc string) comm.LogScanResponse {
	return comm.LogScanResponse{
		Status:  "success",
		Message: "Scan logged",
		Data: &models.ScanRecord{
			ID:            id,
			CardUID:       uid,
			KioskLocation: &loc,
			ScannedAt:     time.Now(),
		},
	}
}

func TestSendPostsScanAndLogsRecord(t *testing.T) {
	var got comm.LogScanRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/log-rfid" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(successBody(1, got.CardUID, "Nalam_Hub_01"))
	}))
	defer srv.Close()

	r := NewRelay(Config{
		URL:           srv.URL + "/api/log-rfid",
		KioskLocation: "Nalam_Hub_01",
	})

	rec, err := r.Send(context.Background(), "A1B2C3D4")
	if err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}

	if got.CardUID != "A1B2C3D4" {
		t.Errorf("posted cardUID = %q, want A1B2C3D4", got.CardUID)
	}
	if got.KioskLocation == nil || *got.KioskLocation != "Nalam_Hub_01" {
		t.Errorf("posted kioskLocation = %v, want Nalam_Hub_01", got.KioskLocation)
	}
	if rec.ID != 1 {
		t.Errorf("returned record id = %d, want 1", rec.ID)
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(comm.ErrorResponse{Error: "Database error"})
			return
		}
		json.NewEncoder(w).Encode(successBody(7, "A1B2C3D4", "Nalam_Hub_01"))
	}))
	defer srv.Close()

	r := NewRelay(Config{
		URL:           srv.URL,
		KioskLocation: "Nalam_Hub_01",
		MinBackoff:    time.Millisecond,
		MaxRetries:    5,
	})

	rec, err := r.Send(context.Background(), "A1B2C3D4")
	if err != nil {
		t.Fatalf("Send() returned error: %v", err)
	}
	if rec.ID != 7 {
		t.Errorf("returned record id = %d, want 7", rec.ID)
	}
	if attempts.Load() != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts.Load())
	}
}

func TestSendGivesUpAfterRetryBudget(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRelay(Config{
		URL:           srv.URL,
		KioskLocation: "Nalam_Hub_01",
		MinBackoff:    time.Millisecond,
		MaxRetries:    2,
	})

	if _, err := r.Send(context.Background(), "A1B2C3D4"); err == nil {
		t.Fatal("expected Send() to fail once the retry budget is spent")
	}
	if attempts.Load() < 2 {
		t.Errorf("server saw %d attempts, want at least 2", attempts.Load())
	}
}

func TestSendRejectsSuccessWithoutRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 2xx but no data field, as a misbehaving proxy would produce
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := NewRelay(Config{
		URL:           srv.URL,
		KioskLocation: "Nalam_Hub_01",
		MinBackoff:    time.Millisecond,
		MaxRetries:    2,
	})

	rec, err := r.Send(context.Background(), "A1B2C3D4")
	if err == nil {
		t.Fatal("expected Send() to fail on a success body without a record")
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestSendFailsWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nobody listening anymore

	r := NewRelay(Config{
		URL:           srv.URL,
		KioskLocation: "Nalam_Hub_01",
		MinBackoff:    time.Millisecond,
		MaxRetries:    2,
	})

	if _, err := r.Send(context.Background(), "A1B2C3D4"); err == nil {
		t.Fatal("expected Send() to fail against a dead server")
	}
}

func TestSendHonorsPerAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	r := NewRelay(Config{
		URL:           srv.URL,
		KioskLocation: "Nalam_Hub_01",
		Timeout:       30 * time.Millisecond,
		MinBackoff:    time.Millisecond,
		MaxRetries:    1,
	})

	start := time.Now()
	if _, err := r.Send(context.Background(), "A1B2C3D4"); err == nil {
		t.Fatal("expected Send() to time out")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send() took %s, timeout not bounded", elapsed)
	}
}
