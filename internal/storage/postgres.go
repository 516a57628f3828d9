package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/nvoskov/outreach-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetOrCreateClient(ctx context.Context, platform, platformID string, profile models.UserProfile) (*models.Client, bool, error) {
	// Upsert keeps the resolution idempotent under the unique
	// (platform, platform_id) constraint. Empty profile fields never
	// overwrite known display names.
	query := `
		INSERT INTO clients (platform, platform_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT unique_platform_id DO UPDATE SET
			username = COALESCE(NULLIF(EXCLUDED.username, ''), clients.username),
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), clients.first_name),
			last_name = COALESCE(NULLIF(EXCLUDED.last_name, ''), clients.last_name),
			last_activity = now()
		RETURNING id, platform, platform_id, username, first_name, last_name,
			status, created_at, last_activity, (xmax = 0) AS created`

	client := &models.Client{}
	var created bool
	err := s.db.QueryRowContext(ctx, query,
		platform, platformID, profile.Username, profile.FirstName, profile.LastName,
	).Scan(
		&client.ID,
		&client.Platform,
		&client.PlatformID,
		&client.Username,
		&client.FirstName,
		&client.LastName,
		&client.Status,
		&client.CreatedAt,
		&client.LastActivity,
		&created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("error resolving client: %v", err)
	}

	return client, created, nil
}

func (s *PostgresStorage) UpdateClientStatus(ctx context.Context, clientID int64, status models.ClientStatus) error {
	query := `
		UPDATE clients
		SET status = $1, last_activity = now()
		WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, status, clientID)
	if err != nil {
		return fmt.Errorf("error updating client status: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("client not found")
	}

	return nil
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, client_id, direction, content, platform_message_id, thread_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ClientID,
		msg.Direction,
		msg.Content,
		msg.PlatformMessageID,
		msg.ThreadID,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating message: %v", err)
	}

	return nil
}

func (s *PostgresStorage) RecentMessages(ctx context.Context, clientID int64, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, client_id, direction, content, platform_message_id, thread_id, created_at
		FROM messages
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ClientID,
			&msg.Direction,
			&msg.Content,
			&msg.PlatformMessageID,
			&msg.ThreadID,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %v", err)
	}

	// Query is newest-first for the index; callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (s *PostgresStorage) RecordActivity(ctx context.Context, activity *models.AccountActivity) error {
	query := `
		INSERT INTO account_activities (platform, account_name, action_type, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp`

	err := s.db.QueryRowContext(ctx, query,
		activity.Platform,
		activity.AccountName,
		activity.ActionType,
		activity.Details,
	).Scan(&activity.ID, &activity.Timestamp)
	if err != nil {
		return fmt.Errorf("error recording activity: %v", err)
	}

	return nil
}

func (s *PostgresStorage) CountActivity(ctx context.Context, platform, account, action string, since, until time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM account_activities
		WHERE platform = $1 AND account_name = $2 AND action_type = $3
			AND timestamp >= $4 AND timestamp < $5`

	var count int
	err := s.db.QueryRowContext(ctx, query, platform, account, action, since, until).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting activity: %v", err)
	}

	return count, nil
}

func (s *PostgresStorage) LastActivity(ctx context.Context, platform, account, action string) (*models.AccountActivity, error) {
	query := `
		SELECT id, platform, account_name, action_type, details, timestamp
		FROM account_activities
		WHERE platform = $1 AND account_name = $2 AND action_type = $3
		ORDER BY timestamp DESC
		LIMIT 1`

	activity := &models.AccountActivity{}
	err := s.db.QueryRowContext(ctx, query, platform, account, action).Scan(
		&activity.ID,
		&activity.Platform,
		&activity.AccountName,
		&activity.ActionType,
		&activity.Details,
		&activity.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying last activity: %v", err)
	}

	return activity, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
