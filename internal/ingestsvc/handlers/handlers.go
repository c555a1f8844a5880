package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/nalam-kiosk/rfid-services/internal/comm"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/broker"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/service"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// dbTimeout bounds each insert so a stalled connection cannot hold the
// request open indefinitely.
const dbTimeout = 5 * time.Second

type Handler struct {
	scanService *service.ScanService
	broker      *broker.Broker
	feed        *ws.Ws
	upgrader    websocket.Upgrader
}

func NewHandler(scanService *service.ScanService, b *broker.Broker, feed *ws.Ws) *Handler {
	return &Handler{
		scanService: scanService,
		broker:      b,
		feed:        feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

// LogRFID accepts one scan submission from the bridge and records it.
func (h *Handler) LogRFID(w http.ResponseWriter, r *http.Request) {
	var req comm.LogScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, comm.ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	scan, err := h.scanService.LogScan(ctx, req.CardUID, req.KioskLocation)
	if err != nil {
		if errors.Is(err, service.ErrUIDRequired) {
			h.writeJSON(w, http.StatusBadRequest, comm.ErrorResponse{Error: "UID is required"})
			return
		}

		// cause stays server-side, the caller only sees a generic message
		log.Errorf("[DB Error] %v", err)
		h.writeJSON(w, http.StatusInternalServerError, comm.ErrorResponse{Error: "Database error"})
		return
	}

	loc := ""
	if scan.KioskLocation != nil {
		loc = *scan.KioskLocation
	}
	log.Infof("[DB] saved scan: %s at %s (id %d)", scan.CardUID, loc, scan.ID)

	h.broker.PublishScanLogged(scan)
	if h.feed != nil {
		h.feed.Broadcast(scan)
	}

	h.writeJSON(w, http.StatusOK, comm.LogScanResponse{
		Status:  "success",
		Message: "Scan logged",
		Data:    scan,
	})
}

// GetScan fetches one recorded scan for operator tooling.
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, comm.ErrorResponse{Error: "Invalid scan id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	scan, err := h.scanService.GetScan(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrScanNotFound) {
			h.writeJSON(w, http.StatusNotFound, comm.ErrorResponse{Error: "Scan not found"})
			return
		}

		log.Errorf("[DB Error] %v", err)
		h.writeJSON(w, http.StatusInternalServerError, comm.ErrorResponse{Error: "Database error"})
		return
	}

	h.writeJSON(w, http.StatusOK, scan)
}

// HandleFeed upgrades dashboard clients onto the live scan feed.
func (h *Handler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		http.Error(w, "Failed to upgrade to WebSocket", http.StatusInternalServerError)
		return
	}

	socketId := uuid.New().String()
	h.feed.StoreConnection(socketId, conn)

	log.Infof("New feed connection established: %s", socketId)

	go h.handleFeedConnection(conn, socketId)
}

// handleFeedConnection drains client frames until the peer goes away. The
// feed is one-way; inbound frames are discarded.
func (h *Handler) handleFeedConnection(conn *websocket.Conn, socketId string) {
	defer func() {
		log.Infof("Closing feed connection: %s", socketId)
		conn.Close()
		h.feed.HandleDisconnect(socketId)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("feed connection %s unexpected close: %v", socketId, err)
			}
			return
		}
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "ingest service is running at port " + os.Getenv("INGEST_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	h.writeJSON(w, http.StatusOK, rsp)
}
