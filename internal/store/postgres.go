package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iplweb/dkp/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const messageColumns = `
	id, COALESCE(hospital_id, 0), sender_role, recipient_role,
	message_type, content, operating_room_id, ward_id, recipient_count,
	sent_at, acknowledged_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	msg := &models.Message{}
	err := row.Scan(
		&msg.ID,
		&msg.HospitalID,
		&msg.SenderRole,
		&msg.RecipientRole,
		&msg.MessageType,
		&msg.Content,
		&msg.OperatingRoomID,
		&msg.WardID,
		&msg.RecipientCount,
		&msg.SentAt,
		&msg.AcknowledgedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

// CreateMessage persists a new message. The hospital is derived from the
// destination ward.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `
		INSERT INTO message_logs
			(hospital_id, sender_role, recipient_role, message_type, content,
			 operating_room_id, ward_id, recipient_count)
		VALUES
			((SELECT hospital_id FROM wards WHERE id = $6),
			 $1, $2, $3, $4, $5, $6, $7)
		RETURNING `+messageColumns,
		msg.SenderRole, msg.RecipientRole, msg.MessageType, msg.Content,
		msg.OperatingRoomID, msg.WardID, msg.RecipientCount,
	))
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM message_logs WHERE id = $1
	`, id))
}

// AcknowledgeMessage sets acknowledged_at if it is still null. The
// conditional UPDATE makes the operation idempotent under concurrent
// acknowledgments of the same message.
func (s *PostgresStore) AcknowledgeMessage(ctx context.Context, id int64, at time.Time) (*models.Message, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE message_logs SET acknowledged_at = $2
		WHERE id = $1 AND acknowledged_at IS NULL
	`, id, at)
	if err != nil {
		return nil, false, err
	}

	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, tag.RowsAffected() > 0, nil
}

// FindUnacknowledged returns the unacknowledged messages addressed to a
// role at a ward, oldest first.
func (s *PostgresStore) FindUnacknowledged(ctx context.Context, role models.Role, wardID int64) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM message_logs
		WHERE recipient_role = $1 AND ward_id = $2 AND acknowledged_at IS NULL
		ORDER BY sent_at
	`, role, wardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListMessages returns the most recent messages for a ward.
func (s *PostgresStore) ListMessages(ctx context.Context, wardID int64, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM message_logs
		WHERE ward_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`, wardID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// GetWard retrieves a ward by ID.
func (s *PostgresStore) GetWard(ctx context.Context, id int64) (*models.Ward, error) {
	ward := &models.Ward{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, hospital_id, name, COALESCE(sort, 0),
		       COALESCE(nurse_telephone, ''), COALESCE(surgeon_telephone, '')
		FROM wards WHERE id = $1
	`, id).Scan(
		&ward.ID,
		&ward.HospitalID,
		&ward.Name,
		&ward.Sort,
		&ward.NurseTelephone,
		&ward.SurgeonTelephone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return ward, nil
}

// GetOperatingRoom retrieves an operating room by ID.
func (s *PostgresStore) GetOperatingRoom(ctx context.Context, id int64) (*models.OperatingRoom, error) {
	or := &models.OperatingRoom{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, hospital_id, name, COALESCE(sort, 0)
		FROM operating_rooms WHERE id = $1
	`, id).Scan(&or.ID, &or.HospitalID, &or.Name, &or.Sort)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return or, nil
}

// ListWards returns all wards in display order.
func (s *PostgresStore) ListWards(ctx context.Context) ([]models.Ward, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, hospital_id, name, COALESCE(sort, 0),
		       COALESCE(nurse_telephone, ''), COALESCE(surgeon_telephone, '')
		FROM wards
		ORDER BY sort, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wards []models.Ward
	for rows.Next() {
		var w models.Ward
		if err := rows.Scan(&w.ID, &w.HospitalID, &w.Name, &w.Sort,
			&w.NurseTelephone, &w.SurgeonTelephone); err != nil {
			return nil, err
		}
		wards = append(wards, w)
	}
	return wards, rows.Err()
}

// ListOperatingRooms returns all operating rooms in display order.
func (s *PostgresStore) ListOperatingRooms(ctx context.Context) ([]models.OperatingRoom, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, hospital_id, name, COALESCE(sort, 0)
		FROM operating_rooms
		ORDER BY sort, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ors []models.OperatingRoom
	for rows.Next() {
		var o models.OperatingRoom
		if err := rows.Scan(&o.ID, &o.HospitalID, &o.Name, &o.Sort); err != nil {
			return nil, err
		}
		ors = append(ors, o)
	}
	return ors, rows.Err()
}

// ListMessageTypes returns the active message types a role can send, in
// display order. Pass an empty role to list all active types.
func (s *PostgresStore) ListMessageTypes(ctx context.Context, sourceRole models.Role) ([]models.MessageType, error) {
	query := `
		SELECT id, hospital_id, code, source_role, target_role,
		       short_description_en, full_description_en,
		       short_description_pl, full_description_pl,
		       button_color, display_order, is_active
		FROM message_types
		WHERE is_active`
	args := []any{}
	if sourceRole != "" {
		query += fmt.Sprintf(" AND source_role = $%d", len(args)+1)
		args = append(args, sourceRole)
	}
	query += " ORDER BY display_order, code"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []models.MessageType
	for rows.Next() {
		var mt models.MessageType
		if err := rows.Scan(&mt.ID, &mt.HospitalID, &mt.Code, &mt.SourceRole,
			&mt.TargetRole, &mt.ShortDescriptionEN, &mt.FullDescriptionEN,
			&mt.ShortDescriptionPL, &mt.FullDescriptionPL,
			&mt.ButtonColor, &mt.DisplayOrder, &mt.IsActive); err != nil {
			return nil, err
		}
		types = append(types, mt)
	}
	return types, rows.Err()
}
