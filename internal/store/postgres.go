package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenderlens/tenderlens/pkg/models"
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

// --- Users ---

func (s *PostgresStore) GetDefaultUser(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at, updated_at FROM users WHERE name = 'default' LIMIT 1`,
	).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default user: %w", err)
	}
	return &u, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
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
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Tenders ---

func (s *PostgresStore) CreateTender(ctx context.Context, tender *models.Tender) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenders (id, user_id, title, entity, tender_number, deadline, estimated_value, description, source_text, stage, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tender.ID, tender.UserID, tender.Title, tender.Entity, tender.TenderNumber,
		tender.Deadline, tender.EstimatedValue, tender.Description, tender.SourceText,
		tender.Stage, tender.CreatedAt, tender.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create tender: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTender(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Tender, error) {
	var t models.Tender
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, entity, tender_number, deadline, estimated_value, description, source_text, stage, created_at, updated_at
		 FROM tenders WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Entity, &t.TenderNumber, &t.Deadline,
		&t.EstimatedValue, &t.Description, &t.SourceText, &t.Stage, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tender: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTenders(ctx context.Context, filter TenderFilter) ([]*models.Tender, int, error) {
	conditions := []string{"user_id = $1"}
	args := []any{filter.UserID}
	argIdx := 2

	if filter.Stage != "" {
		conditions = append(conditions, fmt.Sprintf("stage = $%d", argIdx))
		args = append(args, filter.Stage)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM tenders WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenders: %w", err)
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
		`SELECT id, user_id, title, entity, tender_number, deadline, estimated_value, description, source_text, stage, created_at, updated_at
		 FROM tenders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenders: %w", err)
	}
	defer rows.Close()

	var tenders []*models.Tender
	for rows.Next() {
		var t models.Tender
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Entity, &t.TenderNumber, &t.Deadline,
			&t.EstimatedValue, &t.Description, &t.SourceText, &t.Stage, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan tender: %w", err)
		}
		tenders = append(tenders, &t)
	}
	return tenders, total, rows.Err()
}

// UpdateTenderStage is a compare-and-set: the update applies only when the
// tender is still in the expected stage, mirroring last-write-wins
// resolution at the remote authority.
func (s *PostgresStore) UpdateTenderStage(ctx context.Context, id uuid.UUID, from, to models.Stage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenders SET stage = $3, updated_at = NOW() WHERE id = $1 AND stage = $2`,
		id, from, to)
	if err != nil {
		return fmt.Errorf("update tender stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current models.Stage
		err := s.pool.QueryRow(ctx, `SELECT stage FROM tenders WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get tender stage: %w", err)
		}
		if current == to {
			// Already where the caller wanted it; treat as success.
			return nil
		}
		return ErrStageConflict
	}
	return nil
}

// --- Extractions ---

func (s *PostgresStore) CreateExtraction(ctx context.Context, rec *ExtractionRecord) error {
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal extraction result: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extractions (id, user_id, content_hash, file_path, model_used, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		rec.ID, rec.UserID, rec.ContentHash, rec.FilePath, rec.ModelUsed, resultJSON)
	if err != nil {
		return fmt.Errorf("create extraction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExtractionByHash(ctx context.Context, userID uuid.UUID, contentHash string) (*ExtractionRecord, error) {
	var rec ExtractionRecord
	var resultJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, content_hash, file_path, model_used, result
		 FROM extractions WHERE user_id = $1 AND content_hash = $2
		 ORDER BY created_at DESC LIMIT 1`, userID, contentHash,
	).Scan(&rec.ID, &rec.UserID, &rec.ContentHash, &rec.FilePath, &rec.ModelUsed, &resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get extraction by hash: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return nil, fmt.Errorf("unmarshal extraction result: %w", err)
	}
	return &rec, nil
}

// --- Analyses ---

// CreateAnalysis inserts a new analysis row and deactivates any prior
// active result for the same tender. Supersede, never merge.
func (s *PostgresStore) CreateAnalysis(ctx context.Context, result *models.AnalysisResult) error {
	scoresJSON, redFlagsJSON, keyDatesJSON, err := marshalAnalysisJSON(result)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE analyses SET active = FALSE, updated_at = NOW() WHERE tender_id = $1 AND active`,
		result.TenderID); err != nil {
		return fmt.Errorf("supersede analysis: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO analyses (id, tender_id, overall_score, confidence, scores, recommendation, recommendation_reasoning, red_flags, key_dates, status, model_used, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE, $12, $13)`,
		result.ID, result.TenderID, result.OverallScore, result.Confidence, scoresJSON,
		result.Recommendation, result.RecommendationReasoning, redFlagsJSON, keyDatesJSON,
		result.Status, result.ModelUsed, result.CreatedAt, result.UpdatedAt); err != nil {
		return fmt.Errorf("create analysis: %w", err)
	}

	return tx.Commit(ctx)
}

var validStatusTransitions = map[string][]string{
	models.AnalysisStatusPending:   {models.AnalysisStatusAnalyzing},
	models.AnalysisStatusAnalyzing: {models.AnalysisStatusCompleted, models.AnalysisStatusFailed},
}

func (s *PostgresStore) UpdateAnalysisStatus(ctx context.Context, id uuid.UUID, status string) error {
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM analyses WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get analysis status: %w", err)
	}

	valid := false
	for _, a := range validStatusTransitions[currentStatus] {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid analysis status transition: %s -> %s", currentStatus, status)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE analyses SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}
	return nil
}

// FinalizeAnalysis writes the full result body and terminal status in one
// statement, so a cancelled scoring request never leaves a half-written row.
func (s *PostgresStore) FinalizeAnalysis(ctx context.Context, result *models.AnalysisResult) error {
	scoresJSON, redFlagsJSON, keyDatesJSON, err := marshalAnalysisJSON(result)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET overall_score = $2, confidence = $3, scores = $4, recommendation = $5,
		        recommendation_reasoning = $6, red_flags = $7, key_dates = $8, status = $9,
		        model_used = $10, updated_at = $11
		 WHERE id = $1`,
		result.ID, result.OverallScore, result.Confidence, scoresJSON, result.Recommendation,
		result.RecommendationReasoning, redFlagsJSON, keyDatesJSON, result.Status,
		result.ModelUsed, result.UpdatedAt)
	if err != nil {
		return fmt.Errorf("finalize analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	return s.queryAnalysis(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) GetActiveAnalysis(ctx context.Context, tenderID uuid.UUID) (*models.AnalysisResult, error) {
	return s.queryAnalysis(ctx, `WHERE tender_id = $1 AND active`, tenderID)
}

func (s *PostgresStore) queryAnalysis(ctx context.Context, where string, arg any) (*models.AnalysisResult, error) {
	var r models.AnalysisResult
	var scoresJSON, redFlagsJSON, keyDatesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, tender_id, overall_score, confidence, scores, recommendation, recommendation_reasoning, red_flags, key_dates, status, model_used, created_at, updated_at
		 FROM analyses `+where, arg,
	).Scan(&r.ID, &r.TenderID, &r.OverallScore, &r.Confidence, &scoresJSON, &r.Recommendation,
		&r.RecommendationReasoning, &redFlagsJSON, &keyDatesJSON, &r.Status, &r.ModelUsed,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	if err := json.Unmarshal(scoresJSON, &r.Scores); err != nil {
		return nil, fmt.Errorf("unmarshal scores: %w", err)
	}
	if err := json.Unmarshal(redFlagsJSON, &r.RedFlags); err != nil {
		return nil, fmt.Errorf("unmarshal red flags: %w", err)
	}
	if err := json.Unmarshal(keyDatesJSON, &r.KeyDates); err != nil {
		return nil, fmt.Errorf("unmarshal key dates: %w", err)
	}
	return &r, nil
}

func marshalAnalysisJSON(result *models.AnalysisResult) (scores, redFlags, keyDates []byte, err error) {
	if scores, err = json.Marshal(orEmptyScores(result.Scores)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal scores: %w", err)
	}
	if redFlags, err = json.Marshal(orEmpty(result.RedFlags)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal red flags: %w", err)
	}
	if keyDates, err = json.Marshal(orEmpty(result.KeyDates)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal key dates: %w", err)
	}
	return scores, redFlags, keyDates, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyScores(m map[string]models.CategoryScore) map[string]models.CategoryScore {
	if m == nil {
		return map[string]models.CategoryScore{}
	}
	return m
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
