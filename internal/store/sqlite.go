package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/iplweb/dkp/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// and standalone deployment backend; production uses PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/dkp.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/dkp.db"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection; the pool must not
	// open a second one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS hospitals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		short_name TEXT NOT NULL DEFAULT '',
		website TEXT
	);

	CREATE TABLE IF NOT EXISTS wards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hospital_id INTEGER NOT NULL REFERENCES hospitals(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		sort INTEGER,
		nurse_telephone TEXT,
		surgeon_telephone TEXT,
		UNIQUE (hospital_id, name)
	);

	CREATE TABLE IF NOT EXISTS operating_rooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hospital_id INTEGER NOT NULL REFERENCES hospitals(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		sort INTEGER,
		UNIQUE (hospital_id, name)
	);

	CREATE TABLE IF NOT EXISTS message_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hospital_id INTEGER NOT NULL REFERENCES hospitals(id) ON DELETE CASCADE,
		code TEXT UNIQUE NOT NULL,
		source_role TEXT NOT NULL,
		target_role TEXT NOT NULL,
		short_description_en TEXT NOT NULL DEFAULT '',
		full_description_en TEXT NOT NULL DEFAULT '',
		short_description_pl TEXT NOT NULL DEFAULT '',
		full_description_pl TEXT NOT NULL DEFAULT '',
		button_color TEXT NOT NULL DEFAULT 'danger',
		display_order INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS message_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hospital_id INTEGER REFERENCES hospitals(id) ON DELETE CASCADE,
		sender_role TEXT NOT NULL,
		recipient_role TEXT NOT NULL,
		message_type TEXT NOT NULL,
		content TEXT NOT NULL,
		operating_room_id INTEGER NOT NULL REFERENCES operating_rooms(id),
		ward_id INTEGER NOT NULL REFERENCES wards(id),
		recipient_count INTEGER NOT NULL DEFAULT 0,
		sent_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		acknowledged_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_message_logs_sent_at ON message_logs(ward_id, sent_at);
	CREATE INDEX IF NOT EXISTS idx_message_logs_unacked ON message_logs(recipient_role, ward_id, acknowledged_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var hospitalID sql.NullInt64
	var acked sql.NullTime
	err := row.Scan(
		&msg.ID,
		&hospitalID,
		&msg.SenderRole,
		&msg.RecipientRole,
		&msg.MessageType,
		&msg.Content,
		&msg.OperatingRoomID,
		&msg.WardID,
		&msg.RecipientCount,
		&msg.SentAt,
		&acked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	msg.HospitalID = hospitalID.Int64
	if acked.Valid {
		t := acked.Time
		msg.AcknowledgedAt = &t
	}
	return msg, nil
}

const sqliteMessageColumns = `
	id, hospital_id, sender_role, recipient_role, message_type, content,
	operating_room_id, ward_id, recipient_count, sent_at, acknowledged_at`

// CreateMessage persists a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO message_logs
			(hospital_id, sender_role, recipient_role, message_type, content,
			 operating_room_id, ward_id, recipient_count, sent_at)
		VALUES
			((SELECT hospital_id FROM wards WHERE id = ?), ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.WardID, msg.SenderRole, msg.RecipientRole, msg.MessageType,
		msg.Content, msg.OperatingRoomID, msg.WardID, msg.RecipientCount,
		time.Now().UTC())
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetMessage(ctx, id)
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	return scanSQLiteMessage(s.db.QueryRowContext(ctx, `
		SELECT `+sqliteMessageColumns+` FROM message_logs WHERE id = ?
	`, id))
}

// AcknowledgeMessage sets acknowledged_at if it is still null.
func (s *SQLiteStore) AcknowledgeMessage(ctx context.Context, id int64, at time.Time) (*models.Message, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_logs SET acknowledged_at = ?
		WHERE id = ? AND acknowledged_at IS NULL
	`, at, id)
	if err != nil {
		return nil, false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, affected > 0, nil
}

// FindUnacknowledged returns the unacknowledged messages addressed to a
// role at a ward, oldest first.
func (s *SQLiteStore) FindUnacknowledged(ctx context.Context, role models.Role, wardID int64) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM message_logs
		WHERE recipient_role = ? AND ward_id = ? AND acknowledged_at IS NULL
		ORDER BY sent_at
	`, role, wardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteMessages(rows)
}

// ListMessages returns the most recent messages for a ward.
func (s *SQLiteStore) ListMessages(ctx context.Context, wardID int64, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM message_logs
		WHERE ward_id = ?
		ORDER BY sent_at DESC
		LIMIT ?
	`, wardID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteMessages(rows)
}

func collectSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// GetWard retrieves a ward by ID.
func (s *SQLiteStore) GetWard(ctx context.Context, id int64) (*models.Ward, error) {
	ward := &models.Ward{}
	var sort sql.NullInt64
	var nurseTel, surgeonTel sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, hospital_id, name, sort, nurse_telephone, surgeon_telephone
		FROM wards WHERE id = ?
	`, id).Scan(&ward.ID, &ward.HospitalID, &ward.Name, &sort, &nurseTel, &surgeonTel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	ward.Sort = int(sort.Int64)
	ward.NurseTelephone = nurseTel.String
	ward.SurgeonTelephone = surgeonTel.String
	return ward, nil
}

// GetOperatingRoom retrieves an operating room by ID.
func (s *SQLiteStore) GetOperatingRoom(ctx context.Context, id int64) (*models.OperatingRoom, error) {
	or := &models.OperatingRoom{}
	var sort sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, hospital_id, name, sort
		FROM operating_rooms WHERE id = ?
	`, id).Scan(&or.ID, &or.HospitalID, &or.Name, &sort)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	or.Sort = int(sort.Int64)
	return or, nil
}

// ListWards returns all wards in display order.
func (s *SQLiteStore) ListWards(ctx context.Context) ([]models.Ward, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hospital_id, name, sort, nurse_telephone, surgeon_telephone
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
		var sort sql.NullInt64
		var nurseTel, surgeonTel sql.NullString
		if err := rows.Scan(&w.ID, &w.HospitalID, &w.Name, &sort, &nurseTel, &surgeonTel); err != nil {
			return nil, err
		}
		w.Sort = int(sort.Int64)
		w.NurseTelephone = nurseTel.String
		w.SurgeonTelephone = surgeonTel.String
		wards = append(wards, w)
	}
	return wards, rows.Err()
}

// ListOperatingRooms returns all operating rooms in display order.
func (s *SQLiteStore) ListOperatingRooms(ctx context.Context) ([]models.OperatingRoom, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hospital_id, name, sort
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
		var sort sql.NullInt64
		if err := rows.Scan(&o.ID, &o.HospitalID, &o.Name, &sort); err != nil {
			return nil, err
		}
		o.Sort = int(sort.Int64)
		ors = append(ors, o)
	}
	return ors, rows.Err()
}

// ListMessageTypes returns the active message types a role can send, in
// display order. Pass an empty role to list all active types.
func (s *SQLiteStore) ListMessageTypes(ctx context.Context, sourceRole models.Role) ([]models.MessageType, error) {
	query := `
		SELECT id, hospital_id, code, source_role, target_role,
		       short_description_en, full_description_en,
		       short_description_pl, full_description_pl,
		       button_color, display_order, is_active
		FROM message_types
		WHERE is_active = 1`
	args := []any{}
	if sourceRole != "" {
		query += " AND source_role = ?"
		args = append(args, sourceRole)
	}
	query += " ORDER BY display_order, code"

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// Seed inserts a hospital with wards, operating rooms, and message types
// for development and testing. It is a no-op if a hospital already exists.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hospitals`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO hospitals (name, short_name) VALUES ('Development Hospital', 'dev')
	`)
	if err != nil {
		return err
	}
	hospitalID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i := 1; i <= 4; i++ {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO wards (hospital_id, name, sort) VALUES (?, ?, ?)
		`, hospitalID, "Ward "+string(rune('A'+i-1)), i); err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO operating_rooms (hospital_id, name, sort) VALUES (?, ?, ?)
		`, hospitalID, "OR "+string(rune('0'+i)), i); err != nil {
			return err
		}
	}

	seedTypes := []struct {
		code, source, target, short string
	}{
		{"CAN_ACCEPT_PATIENTS", "Nurse", "Anesthetist", "Can accept patients"},
		{"SURGERY_DONE", "Anesthetist", "Nurse", "Surgery done"},
		{"PATIENT_IN_THE_OR", "Anesthetist", "Surgeon", "Patient in the OR"},
	}
	for i, t := range seedTypes {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO message_types
				(hospital_id, code, source_role, target_role,
				 short_description_en, full_description_en,
				 short_description_pl, full_description_pl, display_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, hospitalID, t.code, t.source, t.target, t.short, t.short, t.short, t.short, i); err != nil {
			return err
		}
	}
	return nil
}
