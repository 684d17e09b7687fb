package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devblin/infisical/pkg/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTable = "integration_auths"

type Store struct {
	pool  *pgxpool.Pool
	table string
}

type Opts struct {
	URI         string
	TablePrefix string
}

func New(ctx context.Context, opts Opts) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	table := defaultTable
	if opts.TablePrefix != "" {
		table = fmt.Sprintf("%s_%s", opts.TablePrefix, defaultTable)
	}

	store := &Store{
		pool:  pool,
		table: table,
	}

	if err := store.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure tables: %w", err)
	}

	return store, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureTables(ctx context.Context) error {
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			integration TEXT NOT NULL,
			team_id TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			access_id_ciphertext TEXT NOT NULL DEFAULT '',
			access_id_iv TEXT NOT NULL DEFAULT '',
			access_id_tag TEXT NOT NULL DEFAULT '',
			access_ciphertext TEXT NOT NULL DEFAULT '',
			access_iv TEXT NOT NULL DEFAULT '',
			access_tag TEXT NOT NULL DEFAULT '',
			refresh_ciphertext TEXT NOT NULL DEFAULT '',
			refresh_iv TEXT NOT NULL DEFAULT '',
			refresh_tag TEXT NOT NULL DEFAULT '',
			access_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`, s.table)

	createIndexSQL := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(access_expires_at)
	`, s.table, s.table)

	if _, err := s.pool.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create integration auths table: %w", err)
	}

	if _, err := s.pool.Exec(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create integration auths index: %w", err)
	}

	return nil
}

const selectColumns = `id, workspace_id, integration, team_id, url,
	access_id_ciphertext, access_id_iv, access_id_tag,
	access_ciphertext, access_iv, access_tag,
	refresh_ciphertext, refresh_iv, refresh_tag,
	access_expires_at, created_at, updated_at`

func (s *Store) CreateIntegrationAuth(ctx context.Context, auth domain.IntegrationAuth) (domain.IntegrationAuth, error) {
	if auth.ID == "" {
		auth.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	auth.CreatedAt = now
	auth.UpdatedAt = now

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, s.table, selectColumns)

	_, err := s.pool.Exec(ctx, insertSQL,
		auth.ID,
		auth.WorkspaceID,
		string(auth.Integration),
		auth.TeamID,
		auth.URL,
		auth.AccessID.Ciphertext, auth.AccessID.IV, auth.AccessID.Tag,
		auth.Access.Ciphertext, auth.Access.IV, auth.Access.Tag,
		auth.Refresh.Ciphertext, auth.Refresh.IV, auth.Refresh.Tag,
		auth.AccessExpiresAt,
		auth.CreatedAt,
		auth.UpdatedAt,
	)
	if err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to insert integration auth: %w", err)
	}

	return auth, nil
}

func (s *Store) GetIntegrationAuth(ctx context.Context, id string) (domain.IntegrationAuth, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns, s.table)

	auth, err := scanIntegrationAuth(s.pool.QueryRow(ctx, selectSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IntegrationAuth{}, domain.ErrIntegrationAuthNotFound
	}
	if err != nil {
		return domain.IntegrationAuth{}, fmt.Errorf("failed to get integration auth: %w", err)
	}

	return auth, nil
}

func (s *Store) UpdateAccess(ctx context.Context, p domain.UpdateAccessParams) error {
	var (
		updateSQL string
		args      []any
	)

	if p.AccessID != nil {
		updateSQL = fmt.Sprintf(`
			UPDATE %s SET access_ciphertext = $1, access_iv = $2, access_tag = $3,
				access_expires_at = $4, updated_at = $5,
				access_id_ciphertext = $6, access_id_iv = $7, access_id_tag = $8
			WHERE id = $9
		`, s.table)
		args = []any{
			p.Access.Ciphertext, p.Access.IV, p.Access.Tag,
			p.AccessExpiresAt, time.Now().UTC(),
			p.AccessID.Ciphertext, p.AccessID.IV, p.AccessID.Tag,
			p.IntegrationAuthID,
		}
	} else {
		updateSQL = fmt.Sprintf(`
			UPDATE %s SET access_ciphertext = $1, access_iv = $2, access_tag = $3,
				access_expires_at = $4, updated_at = $5
			WHERE id = $6
		`, s.table)
		args = []any{
			p.Access.Ciphertext, p.Access.IV, p.Access.Tag,
			p.AccessExpiresAt, time.Now().UTC(),
			p.IntegrationAuthID,
		}
	}

	tag, err := s.pool.Exec(ctx, updateSQL, args...)
	if err != nil {
		return fmt.Errorf("failed to update integration auth access: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrIntegrationAuthNotFound
	}

	return nil
}

func (s *Store) UpdateRefresh(ctx context.Context, p domain.UpdateRefreshParams) error {
	updateSQL := fmt.Sprintf(`
		UPDATE %s SET refresh_ciphertext = $1, refresh_iv = $2, refresh_tag = $3, updated_at = $4
		WHERE id = $5
	`, s.table)

	tag, err := s.pool.Exec(ctx, updateSQL,
		p.Refresh.Ciphertext, p.Refresh.IV, p.Refresh.Tag,
		time.Now().UTC(),
		p.IntegrationAuthID,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration auth refresh: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrIntegrationAuthNotFound
	}

	return nil
}

func (s *Store) ListExpiringIntegrationAuths(ctx context.Context, before time.Time) ([]domain.IntegrationAuth, error) {
	selectSQL := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE access_expires_at IS NOT NULL AND access_expires_at < $1 AND refresh_ciphertext <> ''
		ORDER BY access_expires_at ASC
	`, selectColumns, s.table)

	rows, err := s.pool.Query(ctx, selectSQL, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring integration auths: %w", err)
	}
	defer rows.Close()

	var auths []domain.IntegrationAuth
	for rows.Next() {
		auth, err := scanIntegrationAuth(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration auth: %w", err)
		}
		auths = append(auths, auth)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate integration auths: %w", err)
	}

	return auths, nil
}

func scanIntegrationAuth(row pgx.Row) (domain.IntegrationAuth, error) {
	var (
		auth        domain.IntegrationAuth
		integration string
	)

	err := row.Scan(
		&auth.ID,
		&auth.WorkspaceID,
		&integration,
		&auth.TeamID,
		&auth.URL,
		&auth.AccessID.Ciphertext, &auth.AccessID.IV, &auth.AccessID.Tag,
		&auth.Access.Ciphertext, &auth.Access.IV, &auth.Access.Tag,
		&auth.Refresh.Ciphertext, &auth.Refresh.IV, &auth.Refresh.Tag,
		&auth.AccessExpiresAt,
		&auth.CreatedAt,
		&auth.UpdatedAt,
	)
	if err != nil {
		return domain.IntegrationAuth{}, err
	}

	auth.Integration = domain.IntegrationType(integration)

	return auth, nil
}
