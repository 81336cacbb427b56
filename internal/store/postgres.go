package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/YashJadhav21/ProteinDock/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Proteins ---

func (s *PostgresStore) CreateProtein(ctx context.Context, protein *models.Protein) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proteins (id, tenant_id, name, pdb_id, content, size_bytes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		protein.ID, protein.TenantID, protein.Name, protein.PDBID, protein.Content,
		protein.SizeBytes, protein.CreatedAt, protein.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create protein: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProtein(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Protein, error) {
	var p models.Protein
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, pdb_id, content, size_bytes, created_at, updated_at
		 FROM proteins WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.PDBID, &p.Content, &p.SizeBytes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get protein: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProteins(ctx context.Context, tenantID uuid.UUID) ([]*models.Protein, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, pdb_id, size_bytes, created_at, updated_at
		 FROM proteins WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list proteins: %w", err)
	}
	defer rows.Close()

	var proteins []*models.Protein
	for rows.Next() {
		var p models.Protein
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.PDBID, &p.SizeBytes,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan protein: %w", err)
		}
		proteins = append(proteins, &p)
	}
	return proteins, rows.Err()
}

// --- Ligands ---

func (s *PostgresStore) CreateLigand(ctx context.Context, ligand *models.Ligand) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ligands (id, tenant_id, name, smiles, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ligand.ID, ligand.TenantID, ligand.Name, ligand.SMILES, ligand.CreatedAt, ligand.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create ligand: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLigand(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Ligand, error) {
	var l models.Ligand
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, smiles, created_at, updated_at
		 FROM ligands WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&l.ID, &l.TenantID, &l.Name, &l.SMILES, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ligand: %w", err)
	}
	return &l, nil
}

func (s *PostgresStore) ListLigands(ctx context.Context, tenantID uuid.UUID) ([]*models.Ligand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, smiles, created_at, updated_at
		 FROM ligands WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list ligands: %w", err)
	}
	defer rows.Close()

	var ligands []*models.Ligand
	for rows.Next() {
		var l models.Ligand
		if err := rows.Scan(&l.ID, &l.TenantID, &l.Name, &l.SMILES, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ligand: %w", err)
		}
		ligands = append(ligands, &l)
	}
	return ligands, rows.Err()
}

// --- Jobs ---

const jobColumns = `id, tenant_id, protein_id, ligand_id, status, parameters, progress,
	results, error_message, viewer_id, viewer_path, viewer_url, viewer_expires_at,
	started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, tenant_id, protein_id, ligand_id, status, parameters, progress, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.TenantID, job.ProteinID, job.LigandID, job.Status,
		job.Parameters, job.Progress, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanJob(row)
}

func (s *PostgresStore) GetJobByViewerID(ctx context.Context, viewerID uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE viewer_id = $1`, viewerID)
	return scanJob(row)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM jobs WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT `+jobColumns+` FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := ApplyJobUpdateOptions(opts)

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted {
		query += ", progress = 100"
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.Results != nil {
		query += fmt.Sprintf(", results = $%d", argIdx)
		args = append(args, params.Results)
		argIdx++
	}
	if params.Viewer != nil {
		query += fmt.Sprintf(", viewer_id = $%d, viewer_path = $%d, viewer_url = $%d, viewer_expires_at = $%d",
			argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, params.Viewer.ViewerID, params.Viewer.Path,
			params.Viewer.URLPath, params.Viewer.ExpiresAt)
		argIdx += 4
	}

	// The state guard rides along so a concurrent transition loses cleanly
	// instead of clobbering a terminal row.
	query += fmt.Sprintf(" WHERE id = $1 AND status = $%d", argIdx)
	args = append(args, currentStatus)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invalid job status transition: job %s left %s concurrently", id, currentStatus)
	}
	return nil
}

func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	// GREATEST keeps the column monotone even if events race; the status
	// guard keeps progress writes from touching terminal rows.
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = GREATEST(progress, $2), updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, progress, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListExpiredViewers(ctx context.Context, now time.Time) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE viewer_path IS NOT NULL AND viewer_expires_at < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired viewers: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) ClearJobViewer(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET viewer_id = NULL, viewer_path = NULL, viewer_url = NULL,
		 viewer_expires_at = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear job viewer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanJob reads one job row, assembling the viewer sub-document from its
// nullable columns.
func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var viewerID *uuid.UUID
	var viewerPath, viewerURL *string
	var viewerExpiresAt *time.Time

	err := row.Scan(&j.ID, &j.TenantID, &j.ProteinID, &j.LigandID, &j.Status,
		&j.Parameters, &j.Progress, &j.Results, &j.ErrorMessage,
		&viewerID, &viewerPath, &viewerURL, &viewerExpiresAt,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if viewerID != nil && viewerPath != nil && viewerExpiresAt != nil {
		j.Viewer = &models.ViewerArtifact{
			ViewerID:  *viewerID,
			Path:      *viewerPath,
			ExpiresAt: *viewerExpiresAt,
		}
		if viewerURL != nil {
			j.Viewer.URLPath = *viewerURL
		}
	}
	return &j, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
