package store

import (
	"context"
	"time"

	"github.com/iplweb/dkp/internal/models"
)

// DataStore defines the interface for persistent storage of messages and
// hospital reference data. Both PostgresStore and SQLiteStore implement
// this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	// AcknowledgeMessage sets the acknowledgment timestamp if unset. The
	// returned bool reports whether this call performed the
	// acknowledgment; false means the message was already acknowledged
	// and its original timestamp is returned unchanged.
	AcknowledgeMessage(ctx context.Context, id int64, at time.Time) (*models.Message, bool, error)
	FindUnacknowledged(ctx context.Context, role models.Role, wardID int64) ([]models.Message, error)
	ListMessages(ctx context.Context, wardID int64, limit int) ([]models.Message, error)

	// Reference data
	GetWard(ctx context.Context, id int64) (*models.Ward, error)
	GetOperatingRoom(ctx context.Context, id int64) (*models.OperatingRoom, error)
	ListWards(ctx context.Context) ([]models.Ward, error)
	ListOperatingRooms(ctx context.Context) ([]models.OperatingRoom, error)
	ListMessageTypes(ctx context.Context, sourceRole models.Role) ([]models.MessageType, error)
}
