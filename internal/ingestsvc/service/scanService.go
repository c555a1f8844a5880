package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"
)

// ErrUIDRequired is returned when a scan submission carries no card UID.
var ErrUIDRequired = errors.New("UID is required")

// ErrScanNotFound is returned when no row exists for the requested id.
var ErrScanNotFound = errors.New("scan not found")

// ScanStorer is the persistence surface the service needs. The pgx-backed
// store satisfies it; tests substitute a stub.
type ScanStorer interface {
	InsertScan(ctx context.Context, cardUID string, kioskLocation *string) (*models.ScanRecord, error)
	GetByID(ctx context.Context, id int64) (*models.ScanRecord, error)
}

// ScanService struct represents the scan service layer
type ScanService struct {
	scanStore ScanStorer
}

// NewScanService creates a new ScanService instance
func NewScanService(scanStore ScanStorer) *ScanService {
	return &ScanService{
		scanStore: scanStore,
	}
}

// LogScan validates and persists one scan submission. kioskLocation may be
// nil and is stored as NULL.
func (s *ScanService) LogScan(ctx context.Context, cardUID string, kioskLocation *string) (*models.ScanRecord, error) {
	if cardUID == "" {
		return nil, ErrUIDRequired
	}

	scan, err := s.scanStore.InsertScan(ctx, cardUID, kioskLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to log scan: %w", err)
	}

	return scan, nil
}

// GetScan fetches a persisted scan by its generated id.
func (s *ScanService) GetScan(ctx context.Context, id int64) (*models.ScanRecord, error) {
	scan, err := s.scanStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	return scan, nil
}
