package comm

import (
	"encoding/json"

	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"
)

type WSMessage struct {
	Type string          `json:"type"` // e.g. "scan"
	Data json.RawMessage `json:"data"`
}

// LogScanRequest is the body the bridge posts to /api/log-rfid.
type LogScanRequest struct {
	CardUID       string  `json:"cardUID"`
	KioskLocation *string `json:"kioskLocation,omitempty"`
}

// LogScanResponse is the success envelope returned by the ingest service.
type LogScanResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Data    *models.ScanRecord `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ScanNotification is published on NATS for each accepted scan.
type ScanNotification struct {
	Scan       *models.ScanRecord `json:"scan"`
	InstanceId string             `json:"instance_id"`
}
