package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresCredentialStore keeps credentials in the partner_credentials table
type PostgresCredentialStore struct {
	db        *sql.DB
	partnerID string
}

// NewPostgresCredentialStore creates a store scoped to one partner
func NewPostgresCredentialStore(db *sql.DB, partnerID string) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db, partnerID: partnerID}
}

// Get retrieves the active credentials of an app
func (s *PostgresCredentialStore) Get(ctx context.Context, appID string) (*Credentials, error) {
	query := `
		SELECT app_id, partner_id, credentials, status, created_at, updated_at
		FROM partner_credentials
		WHERE app_id = $1 AND partner_id = $2 AND status = 'active'
	`

	var c Credentials
	var credentialsJSON []byte

	err := s.db.QueryRowContext(ctx, query, appID, s.partnerID).Scan(
		&c.AppID,
		&c.PartnerID,
		&credentialsJSON,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	if len(credentialsJSON) > 0 {
		if err := json.Unmarshal(credentialsJSON, &c.Values); err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
	}

	return &c, nil
}

// Put inserts or replaces the credentials of an app and reactivates archived records
func (s *PostgresCredentialStore) Put(ctx context.Context, c *Credentials) error {
	if c == nil || c.AppID == "" {
		return fmt.Errorf("credentials require an app_id")
	}

	credentialsJSON, err := json.Marshal(c.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	query := `
		INSERT INTO partner_credentials (app_id, partner_id, credentials, status)
		VALUES ($1, $2, $3, 'active')
		ON CONFLICT (app_id, partner_id)
		DO UPDATE SET credentials = EXCLUDED.credentials, status = 'active', updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query, c.AppID, s.partnerID, credentialsJSON).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	c.PartnerID = s.partnerID
	c.Status = StatusActive
	return nil
}

// Delete soft-deletes the credentials of an app by setting status to 'archived'
func (s *PostgresCredentialStore) Delete(ctx context.Context, appID string) error {
	query := `
		UPDATE partner_credentials
		SET status = 'archived', updated_at = NOW()
		WHERE app_id = $1 AND partner_id = $2 AND status = 'active'
	`

	result, err := s.db.ExecContext(ctx, query, appID, s.partnerID)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, appID)
	}

	return nil
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// NewDBConnection creates a new database connection
func NewDBConnection(cfg DBConfig) (*sql.DB, error) {
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Credentials are read at setup only
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
