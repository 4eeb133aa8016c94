package storage

import (
	"context"

	"gametunnel/internal/storage/models"
)

// Storage defines the interface for data persistence. Probe samples and
// session events are written through best-effort by the monitor; the CLI
// reads them back for history views.
type Storage interface {
	// Sample operations
	RecordSample(ctx context.Context, sample *models.SampleRecord) error
	GetLatestSample(ctx context.Context, endpointID string) (*models.SampleRecord, error)
	GetSampleHistory(ctx context.Context, endpointID string, limit int) ([]*models.SampleRecord, error)
	PruneSamples(ctx context.Context, keepPerEndpoint int) error

	// Session event operations
	RecordSessionEvent(ctx context.Context, event *models.SessionEvent) error
	GetSessionEvents(ctx context.Context, limit int) ([]*models.SessionEvent, error)
	CountSessionEvents(ctx context.Context, eventType string) (int64, error)

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Close closes the storage connection
	Close() error
}
