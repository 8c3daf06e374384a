// Package postgres persists submissions, values and answers with pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"amsf/internal/submission/models"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
	txcontext "amsf/pkg/platform/tx"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store is pure I/O. Lifecycle and lock rules live on the models; the store
// only guarantees that checks and writes happen atomically.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) db(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// WithinTx runs fn inside one database transaction. Calls made with the
// returned context join it; nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const submissionColumns = `id, organization_id, year, status, taxonomy_version,
	started_at, validated_at, completed_at, generated_at,
	locked_by, locked_at, reopened_count, signatory_name, signatory_title,
	downloaded_unvalidated, unvalidated_acknowledged_by, unvalidated_acknowledged_at, version`

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var (
		sub                   models.Submission
		rawID, rawOrg         uuid.UUID
		status                string
		lockedBy, acknowledge pgtype.UUID
	)
	err := row.Scan(
		&rawID, &rawOrg, &sub.Year, &status, &sub.TaxonomyVersion,
		&sub.StartedAt, &sub.ValidatedAt, &sub.CompletedAt, &sub.GeneratedAt,
		&lockedBy, &sub.LockedAt, &sub.ReopenedCount, &sub.SignatoryName, &sub.SignatoryTitle,
		&sub.DownloadedUnvalidated, &acknowledge, &sub.UnvalidatedAcknowledgedAt, &sub.Version,
	)
	if err != nil {
		return nil, err
	}
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	sub.ID = id.SubmissionID(rawID)
	sub.OrganizationID = id.OrganizationID(rawOrg)
	sub.Status = parsed
	sub.LockedBy = userPtr(lockedBy)
	sub.UnvalidatedAcknowledgedBy = userPtr(acknowledge)
	return &sub, nil
}

func userPtr(u pgtype.UUID) *id.UserID {
	if !u.Valid {
		return nil
	}
	user := id.UserID(u.Bytes)
	return &user
}

func userArg(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}

func (s *Store) Create(ctx context.Context, sub *models.Submission) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		uuid.UUID(sub.ID), uuid.UUID(sub.OrganizationID), sub.Year, string(sub.Status), sub.TaxonomyVersion,
		sub.StartedAt, sub.ValidatedAt, sub.CompletedAt, sub.GeneratedAt,
		userArg(sub.LockedBy), sub.LockedAt, sub.ReopenedCount, sub.SignatoryName, sub.SignatoryTitle,
		sub.DownloadedUnvalidated, userArg(sub.UnvalidatedAcknowledgedBy), sub.UnvalidatedAcknowledgedAt, sub.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	sub, err := scanSubmission(s.db(ctx).QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, uuid.UUID(submissionID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return sub, nil
}

func (s *Store) FindByOrgAndYear(ctx context.Context, orgID id.OrganizationID, year int) (*models.Submission, error) {
	sub, err := scanSubmission(s.db(ctx).QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE organization_id = $1 AND year = $2`,
		uuid.UUID(orgID), year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission by year: %w", err)
	}
	return sub, nil
}

func (s *Store) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*models.Submission, error) {
	rows, err := s.db(ctx).Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE organization_id = $1 ORDER BY year DESC`,
		uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Submission, error) {
		return scanSubmission(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan submissions: %w", err)
	}
	return out, nil
}

// Execute locks the row, runs validate and mutate, and writes the result back
// guarded by the version it read.
func (s *Store) Execute(ctx context.Context, submissionID id.SubmissionID, validate func(*models.Submission) error, mutate func(*models.Submission)) (*models.Submission, error) {
	var out *models.Submission
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		sub, err := scanSubmission(s.db(ctx).QueryRow(ctx,
			`SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, uuid.UUID(submissionID)))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("load submission for update: %w", err)
		}
		if validate != nil {
			if err := validate(sub); err != nil {
				return err
			}
		}
		mutate(sub)
		if err := s.update(ctx, sub); err != nil {
			return err
		}
		out = sub
		return nil
	})
	return out, err
}

func (s *Store) update(ctx context.Context, sub *models.Submission) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE submissions SET
			status = $3, taxonomy_version = $4,
			validated_at = $5, completed_at = $6, generated_at = $7,
			locked_by = $8, locked_at = $9, reopened_count = $10,
			signatory_name = $11, signatory_title = $12,
			downloaded_unvalidated = $13, unvalidated_acknowledged_by = $14, unvalidated_acknowledged_at = $15,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		uuid.UUID(sub.ID), sub.Version, string(sub.Status), sub.TaxonomyVersion,
		sub.ValidatedAt, sub.CompletedAt, sub.GeneratedAt,
		userArg(sub.LockedBy), sub.LockedAt, sub.ReopenedCount,
		sub.SignatoryName, sub.SignatoryTitle,
		sub.DownloadedUnvalidated, userArg(sub.UnvalidatedAcknowledgedBy), sub.UnvalidatedAcknowledgedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	sub.Version++
	return nil
}

// AcquireLock is a single conditional UPDATE: it succeeds when the lock is
// free, held by user, or older than ttl.
func (s *Store) AcquireLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID, now time.Time, ttl time.Duration) (*models.Submission, error) {
	var expiredBefore any
	if ttl > 0 {
		expiredBefore = now.Add(-ttl)
	}
	sub, err := scanSubmission(s.db(ctx).QueryRow(ctx, `
		UPDATE submissions
		SET locked_by = $2, locked_at = $3, version = version + 1
		WHERE id = $1
		  AND (locked_by IS NULL OR locked_by = $2 OR ($4::timestamptz IS NOT NULL AND locked_at <= $4))
		RETURNING `+submissionColumns,
		uuid.UUID(submissionID), uuid.UUID(user), now, expiredBefore))
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if _, findErr := s.FindByID(ctx, submissionID); findErr != nil {
		return nil, findErr
	}
	return nil, sentinel.ErrLocked
}

// ReleaseLock clears a lock held by user. Releasing a free lock is a no-op.
func (s *Store) ReleaseLock(ctx context.Context, submissionID id.SubmissionID, user id.UserID) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE submissions
		SET locked_by = NULL, locked_at = NULL, version = version + 1
		WHERE id = $1 AND locked_by = $2`,
		uuid.UUID(submissionID), uuid.UUID(user))
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	sub, err := s.FindByID(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.LockedBy != nil {
		return sentinel.ErrLocked
	}
	return nil
}

const valueColumns = `submission_id, element_name, value_kind, value_text, value_dims, source,
	overridden, overridden_by, overridden_at, previous_kind, previous_text, previous_dims,
	confirmed_at, review_note, reviewed_by, updated_at`

func decodeValue(kind, text string, dims []byte) (models.Value, error) {
	if models.ValueKind(kind) != models.KindDimensional {
		return models.Scalar(text), nil
	}
	m := map[string]string{}
	if len(dims) > 0 {
		if err := json.Unmarshal(dims, &m); err != nil {
			return models.Value{}, fmt.Errorf("decode dimensional value: %w", err)
		}
	}
	return models.Dimensional(m), nil
}

// encodeValue splits a value into its kind, text and jsonb columns.
func encodeValue(v models.Value) (string, string, any, error) {
	if !v.IsDimensional() {
		return string(models.KindScalar), v.Text(), nil, nil
	}
	b, err := json.Marshal(v.Dims())
	if err != nil {
		return "", "", nil, fmt.Errorf("encode dimensional value: %w", err)
	}
	return string(models.KindDimensional), "", string(b), nil
}

func scanValue(row pgx.Row) (models.SubmissionValue, error) {
	var (
		v                    models.SubmissionValue
		rawSub               uuid.UUID
		kind, text, source   string
		dims, prevDims       []byte
		prevKind, prevText   *string
		overriddenBy, review pgtype.UUID
	)
	err := row.Scan(
		&rawSub, &v.ElementName, &kind, &text, &dims, &source,
		&v.Overridden, &overriddenBy, &v.OverriddenAt, &prevKind, &prevText, &prevDims,
		&v.ConfirmedAt, &v.ReviewNote, &review, &v.UpdatedAt,
	)
	if err != nil {
		return v, err
	}
	v.SubmissionID = id.SubmissionID(rawSub)
	if v.Value, err = decodeValue(kind, text, dims); err != nil {
		return v, err
	}
	if v.Source, err = models.ParseSource(source); err != nil {
		return v, err
	}
	if prevKind != nil {
		var t string
		if prevText != nil {
			t = *prevText
		}
		prev, err := decodeValue(*prevKind, t, prevDims)
		if err != nil {
			return v, err
		}
		v.PreviousValue = &prev
	}
	v.OverriddenBy = userPtr(overriddenBy)
	v.ReviewedBy = userPtr(review)
	return v, nil
}

func (s *Store) Values(ctx context.Context, submissionID id.SubmissionID) ([]models.SubmissionValue, error) {
	rows, err := s.db(ctx).Query(ctx,
		`SELECT `+valueColumns+` FROM submission_values WHERE submission_id = $1 ORDER BY element_name`,
		uuid.UUID(submissionID))
	if err != nil {
		return nil, fmt.Errorf("list submission values: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SubmissionValue, error) {
		return scanValue(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan submission values: %w", err)
	}
	return out, nil
}

func (s *Store) Value(ctx context.Context, submissionID id.SubmissionID, element string) (*models.SubmissionValue, error) {
	v, err := scanValue(s.db(ctx).QueryRow(ctx,
		`SELECT `+valueColumns+` FROM submission_values WHERE submission_id = $1 AND element_name = $2`,
		uuid.UUID(submissionID), element))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find submission value: %w", err)
	}
	return &v, nil
}

// SaveValues upserts every value in a single batch.
func (s *Store) SaveValues(ctx context.Context, values []models.SubmissionValue) error {
	if len(values) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, v := range values {
		kind, text, dims, err := encodeValue(v.Value)
		if err != nil {
			return err
		}
		var prevKind, prevText, prevDims any
		if v.PreviousValue != nil {
			k, t, d, err := encodeValue(*v.PreviousValue)
			if err != nil {
				return err
			}
			prevKind, prevText, prevDims = k, t, d
		}
		batch.Queue(`
			INSERT INTO submission_values (`+valueColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (submission_id, element_name) DO UPDATE SET
				value_kind = EXCLUDED.value_kind,
				value_text = EXCLUDED.value_text,
				value_dims = EXCLUDED.value_dims,
				source = EXCLUDED.source,
				overridden = EXCLUDED.overridden,
				overridden_by = EXCLUDED.overridden_by,
				overridden_at = EXCLUDED.overridden_at,
				previous_kind = EXCLUDED.previous_kind,
				previous_text = EXCLUDED.previous_text,
				previous_dims = EXCLUDED.previous_dims,
				confirmed_at = EXCLUDED.confirmed_at,
				review_note = EXCLUDED.review_note,
				reviewed_by = EXCLUDED.reviewed_by,
				updated_at = EXCLUDED.updated_at`,
			uuid.UUID(v.SubmissionID), v.ElementName, kind, text, dims, string(v.Source),
			v.Overridden, userArg(v.OverriddenBy), v.OverriddenAt, prevKind, prevText, prevDims,
			v.ConfirmedAt, v.ReviewNote, userArg(v.ReviewedBy), v.UpdatedAt,
		)
	}
	results := s.db(ctx).SendBatch(ctx, batch)
	defer results.Close()
	for range values {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("save submission values: %w", err)
		}
	}
	return nil
}

func (s *Store) Answers(ctx context.Context, submissionID id.SubmissionID) ([]models.Answer, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT submission_id, xbrl_id, value, updated_by, updated_at
		FROM answers WHERE submission_id = $1 ORDER BY xbrl_id`,
		uuid.UUID(submissionID))
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Answer, error) {
		var (
			a      models.Answer
			rawSub uuid.UUID
			by     pgtype.UUID
		)
		if err := row.Scan(&rawSub, &a.XbrlID, &a.Value, &by, &a.UpdatedAt); err != nil {
			return a, err
		}
		a.SubmissionID = id.SubmissionID(rawSub)
		if by.Valid {
			a.UpdatedBy = id.UserID(by.Bytes)
		}
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan answers: %w", err)
	}
	return out, nil
}

func (s *Store) SaveAnswer(ctx context.Context, a models.Answer) error {
	var by any
	if !a.UpdatedBy.IsNil() {
		by = uuid.UUID(a.UpdatedBy)
	}
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO answers (submission_id, xbrl_id, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (submission_id, xbrl_id) DO UPDATE SET
			value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(a.SubmissionID), a.XbrlID, a.Value, by, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}
