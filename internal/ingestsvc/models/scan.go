package models

import (
	"time"
)

// ScanRecord represents one row of the rfid_scans table.
type ScanRecord struct {
	ID            int64     `json:"id"`
	CardUID       string    `json:"card_uid"`
	KioskLocation *string   `json:"kiosk_location"`
	ScannedAt     time.Time `json:"scanned_at"`
}
