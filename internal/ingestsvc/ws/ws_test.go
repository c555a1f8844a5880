package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nalam-kiosk/rfid-services/internal/comm"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"
)

func dialFeed(t *testing.T, hub *Ws, socketId string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.StoreConnection(socketId, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	// wait for the server side to land in the registry
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := hub.GetConnection(socketId); ok {
			return client
		}
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastDeliversScanToClient(t *testing.T) {
	hub := NewWs()
	client := dialFeed(t, hub, "sock-1")

	loc := "Nalam_Hub_01"
	hub.Broadcast(&models.ScanRecord{
		ID:            1,
		CardUID:       "A1B2C3D4",
		KioskLocation: &loc,
		ScannedAt:     time.Now(),
	})

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}

	var msg comm.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("failed to decode feed message: %v", err)
	}
	if msg.Type != "scan" {
		t.Errorf("message type = %q, want scan", msg.Type)
	}

	var scan models.ScanRecord
	if err := json.Unmarshal(msg.Data, &scan); err != nil {
		t.Fatalf("failed to decode scan payload: %v", err)
	}
	if scan.CardUID != "A1B2C3D4" {
		t.Errorf("card_uid = %q, want A1B2C3D4", scan.CardUID)
	}
}

func TestBroadcastEvictsDeadConnection(t *testing.T) {
	hub := NewWs()
	client := dialFeed(t, hub, "sock-1")
	client.Close()

	scan := &models.ScanRecord{ID: 1, CardUID: "A1B2C3D4", ScannedAt: time.Now()}

	// the write failure may take a broadcast or two to surface
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.Broadcast(scan)
		if _, ok := hub.GetConnection("sock-1"); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("dead connection was never evicted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
