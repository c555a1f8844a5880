package store

import (
	"context"
	"fmt"

	"github.com/nalam-kiosk/rfid-services/internal/ingestsvc/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ScanStore struct {
	db *pgxpool.Pool
}

func NewScanStore(db *pgxpool.Pool) *ScanStore {
	return &ScanStore{db: db}
}

// EnsureSchema creates the rfid_scans table when it does not exist yet.
// Must complete before the service starts accepting requests.
func (r *ScanStore) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS rfid_scans (
            id SERIAL PRIMARY KEY,
            card_uid VARCHAR(50) NOT NULL,
            kiosk_location VARCHAR(100),
            scanned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );
    `

	_, err := r.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("could not ensure rfid_scans table: %w", err)
	}

	return nil
}

// InsertScan records one accepted scan and returns the persisted row,
// including the generated id and the database-assigned timestamp.
func (r *ScanStore) InsertScan(ctx context.Context, cardUID string, kioskLocation *string) (*models.ScanRecord, error) {
	query := `
        INSERT INTO rfid_scans (card_uid, kiosk_location)
        VALUES ($1, $2)
        RETURNING id, card_uid, kiosk_location, scanned_at;
    `

	s := &models.ScanRecord{}
	err := r.db.QueryRow(ctx, query, cardUID, kioskLocation).Scan(
		&s.ID,
		&s.CardUID,
		&s.KioskLocation,
		&s.ScannedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("could not insert scan: %w", err)
	}

	return s, nil
}

func (r *ScanStore) GetByID(ctx context.Context, id int64) (*models.ScanRecord, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, card_uid, kiosk_location, scanned_at
        FROM rfid_scans
        WHERE id = $1
    `, id)

	s := &models.ScanRecord{}
	err := row.Scan(
		&s.ID,
		&s.CardUID,
		&s.KioskLocation,
		&s.ScannedAt,
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}
