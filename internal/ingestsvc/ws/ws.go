package ws

import (
	"encoding/json"
	"sync"

	"github.com/nalam-kiosk/rfid-services/internal/comm"
	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Ws fans accepted scans out to connected dashboard clients.
type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	mu      sync.Mutex
}

func NewWs() *Ws {
	return &Ws{}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

// Broadcast sends one accepted scan to every connected client. Connections
// that fail the write are evicted.
func (s *Ws) Broadcast(scan *models.ScanRecord) {
	data, err := json.Marshal(scan)
	if err != nil {
		log.Errorf("failed to marshal scan for broadcast: %v", err)
		return
	}

	msg := comm.WSMessage{
		Type: "scan",
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("failed to marshal feed message: %v", err)
		return
	}

	// gorilla connections allow one concurrent writer
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connMap.Range(func(key, value interface{}) bool {
		socketId := key.(string)
		conn := value.(*websocket.Conn)

		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Infof("evicting feed connection %s: %v", socketId, err)
			conn.Close()
			s.connMap.Delete(socketId)
		}
		return true // continue iterating
	})
}
