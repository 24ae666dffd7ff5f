package profile

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-ai/parley/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is the Postgres-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres, runs the embedded schema migrations,
// and returns a ready store. databaseURL is a standard postgres:// URL.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// runMigrations applies the embedded migrations. The golang-migrate pgx/v5
// driver registers the pgx5 URL scheme, so the postgres:// URL is rewritten.
func runMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	migrateURL := databaseURL
	if strings.HasPrefix(migrateURL, "postgres://") {
		migrateURL = "pgx5://" + strings.TrimPrefix(migrateURL, "postgres://")
	} else if strings.HasPrefix(migrateURL, "postgresql://") {
		migrateURL = "pgx5://" + strings.TrimPrefix(migrateURL, "postgresql://")
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

const profileColumns = "id, display_name, profile_text, capabilities, active, updated_at"

// GetProfile returns the profile for the given agent ID, or ErrNotFound.
func (s *PostgresStore) GetProfile(ctx context.Context, agentID string) (*models.AgentProfile, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+profileColumns+" FROM agent_profiles WHERE id = $1", agentID)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query agent profile: %w", err)
	}
	return p, nil
}

// ListActiveAgents returns all active profiles, ordered by agent ID.
func (s *PostgresStore) ListActiveAgents(ctx context.Context) ([]*models.AgentProfile, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+profileColumns+" FROM agent_profiles WHERE active ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list agent profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.AgentProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agent profiles: %w", err)
	}
	return out, nil
}

// UpsertProfile creates or replaces a profile.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *models.AgentProfile) error {
	if p.ID == "" {
		return fmt.Errorf("agent profile requires an ID")
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_profiles (id, display_name, profile_text, capabilities, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			profile_text = EXCLUDED.profile_text,
			capabilities = EXCLUDED.capabilities,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.DisplayName, p.ProfileText, p.Capabilities, p.Active, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert agent profile: %w", err)
	}
	return nil
}

// DeactivateAgent marks an agent inactive.
func (s *PostgresStore) DeactivateAgent(ctx context.Context, agentID string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE agent_profiles SET active = FALSE, updated_at = $2 WHERE id = $1",
		agentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	return nil
}

func scanProfile(row pgx.Row) (*models.AgentProfile, error) {
	var p models.AgentProfile
	if err := row.Scan(&p.ID, &p.DisplayName, &p.ProfileText, &p.Capabilities, &p.Active, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Capabilities == nil {
		p.Capabilities = []string{}
	}
	return &p, nil
}
