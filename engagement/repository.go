package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const engagementColumns = `
	id, buyer_id, supplier_id, status::text, version, path::text, tier::text,
	match_score, monthly_rate, size_sqft, lease_start_date, lease_end_date,
	deadline_at, tour_scheduled_for, tour_reschedule_count,
	declined_by, decline_reason, declined_at,
	insurance_uploaded, company_docs_uploaded, payment_method_added,
	buyer_signed_at, supplier_signed_at,
	deal_ping_sent_at, deal_ping_responded_at, guarantee_signed_at,
	tour_requested_at, tour_confirmed_at, tour_completed_at,
	instant_book_requested_at, instant_book_confirmed_at,
	agreement_sent_at, agreement_signed_at,
	onboarding_started_at, onboarding_completed_at,
	lease_started_at, lease_ended_at,
	created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Get(ctx context.Context, id string) (Engagement, error) {
	query := `SELECT` + engagementColumns + ` FROM engagements WHERE id = $1`

	eng, err := scanEngagement(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Engagement{}, ErrNotFound
		}
		return Engagement{}, fmt.Errorf("engagement: get: %w", err)
	}
	return eng, nil
}

func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Engagement, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	where := []string{"1=1"}
	args := []any{}
	if filter.BuyerID != "" {
		where = append(where, fmt.Sprintf("buyer_id=$%d", len(args)+1))
		args = append(args, filter.BuyerID)
	}
	if filter.SupplierID != "" {
		where = append(where, fmt.Sprintf("supplier_id=$%d", len(args)+1))
		args = append(args, filter.SupplierID)
	}
	if filter.Bucket != "" {
		statuses := StatusesInBucket(filter.Bucket)
		if len(statuses) == 0 {
			return []Engagement{}, 0, nil
		}
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d::engagement_status[])", len(args)+1))
		args = append(args, names)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")
	query := fmt.Sprintf(`SELECT%s FROM engagements%s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		engagementColumns, whereClause, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("engagement: list: %w", err)
	}
	defer rows.Close()

	list := []Engagement{}
	for rows.Next() {
		eng, err := scanEngagement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("engagement: scan list: %w", err)
		}
		list = append(list, eng)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("engagement: iterate list: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM engagements" + whereClause
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("engagement: count list: %w", err)
	}

	return list, total, nil
}

func (r *PGRepository) ListDue(ctx context.Context, statuses []Status, cutoff time.Time, limit int) ([]Engagement, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	query := `SELECT` + engagementColumns + `
		FROM engagements
		WHERE status = ANY($1::engagement_status[]) AND deadline_at IS NOT NULL AND deadline_at <= $2
		ORDER BY deadline_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, names, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("engagement: list due: %w", err)
	}
	defer rows.Close()

	out := make([]Engagement, 0, 16)
	for rows.Next() {
		eng, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("engagement: scan due: %w", err)
		}
		out = append(out, eng)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement: iterate due: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Timeline(ctx context.Context, engagementID string) ([]EventLogEntry, error) {
	const query = `
		SELECT id, engagement_id, seq, event_type, actor_role::text, from_status::text, to_status::text, ts, payload
		FROM engagement_events
		WHERE engagement_id = $1
		ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, engagementID)
	if err != nil {
		return nil, fmt.Errorf("engagement: timeline: %w", err)
	}
	defer rows.Close()

	out := make([]EventLogEntry, 0, 16)
	for rows.Next() {
		var (
			entry   EventLogEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &entry.EngagementID, &entry.Seq, &entry.EventType, &entry.ActorRole,
			&entry.FromStatus, &entry.ToStatus, &entry.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("engagement: scan timeline: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("engagement: decode timeline payload: %w", err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engagement: iterate timeline: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Create(ctx context.Context, e Engagement) (Engagement, error) {
	const query = `
		INSERT INTO engagements (
			id, buyer_id, supplier_id, status, version, path, tier,
			match_score, monthly_rate, size_sqft, lease_start_date, lease_end_date,
			deadline_at, deal_ping_sent_at
		)
		VALUES (
			COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3,
			$4::engagement_status, $5, $6::engagement_path, $7::engagement_tier,
			$8, $9, $10, $11, $12, $13, $14
		)
		RETURNING` + engagementColumns

	row := r.pool.QueryRow(ctx, query,
		e.ID,
		e.BuyerID,
		e.SupplierID,
		e.Status,
		e.Version,
		e.Path,
		e.Tier,
		e.MatchScore,
		e.MonthlyRate,
		e.SizeSqft,
		e.LeaseStartDate,
		e.LeaseEndDate,
		e.DeadlineAt,
		e.Milestones.DealPingSentAt,
	)

	created, err := scanEngagement(row)
	if err != nil {
		return Engagement{}, fmt.Errorf("engagement: create: %w", err)
	}
	return created, nil
}

// Commit performs the compare-and-swap write: the engagement row is updated
// only when its stored version still equals expectedVersion, and the log
// entries land in the same transaction. Zero rows updated means a concurrent
// writer won; nothing is written.
func (r *PGRepository) Commit(ctx context.Context, expectedVersion int64, e Engagement, entries []EventLogEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("engagement: begin commit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateSQL = `
		UPDATE engagements SET
			status = $3::engagement_status,
			version = $4,
			path = $5::engagement_path,
			deadline_at = $6,
			tour_scheduled_for = $7,
			tour_reschedule_count = $8,
			declined_by = $9::actor_role,
			decline_reason = $10,
			declined_at = $11,
			insurance_uploaded = $12,
			company_docs_uploaded = $13,
			payment_method_added = $14,
			buyer_signed_at = $15,
			supplier_signed_at = $16,
			deal_ping_responded_at = $17,
			guarantee_signed_at = $18,
			tour_requested_at = $19,
			tour_confirmed_at = $20,
			tour_completed_at = $21,
			instant_book_requested_at = $22,
			instant_book_confirmed_at = $23,
			agreement_sent_at = $24,
			agreement_signed_at = $25,
			onboarding_started_at = $26,
			onboarding_completed_at = $27,
			lease_started_at = $28,
			lease_ended_at = $29,
			updated_at = $30
		WHERE id = $1 AND version = $2`

	tag, err := tx.Exec(ctx, updateSQL,
		e.ID,
		expectedVersion,
		e.Status,
		e.Version,
		e.Path,
		e.DeadlineAt,
		e.TourScheduledFor,
		e.TourRescheduleCount,
		e.DeclinedBy,
		e.DeclineReason,
		e.DeclinedAt,
		e.Checklist.InsuranceUploaded,
		e.Checklist.CompanyDocsUploaded,
		e.Checklist.PaymentMethodAdded,
		e.BuyerSignedAt,
		e.SupplierSignedAt,
		e.Milestones.DealPingRespondedAt,
		e.Milestones.GuaranteeSignedAt,
		e.Milestones.TourRequestedAt,
		e.Milestones.TourConfirmedAt,
		e.Milestones.TourCompletedAt,
		e.Milestones.InstantBookRequestedAt,
		e.Milestones.InstantBookConfirmedAt,
		e.Milestones.AgreementSentAt,
		e.Milestones.AgreementSignedAt,
		e.Milestones.OnboardingStartedAt,
		e.Milestones.OnboardingCompletedAt,
		e.Milestones.LeaseStartedAt,
		e.Milestones.LeaseEndedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("engagement: cas update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM engagements WHERE id=$1)`, e.ID).Scan(&exists); err != nil {
			return fmt.Errorf("engagement: cas existence check: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	const insertSQL = `
		INSERT INTO engagement_events (engagement_id, seq, event_type, actor_role, from_status, to_status, ts, payload)
		VALUES ($1, $2, $3, $4::actor_role, $5::engagement_status, $6::engagement_status, $7, $8::jsonb)`

	for _, entry := range entries {
		payload, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("engagement: marshal entry payload: %w", err)
		}
		if entry.Metadata == nil {
			payload = []byte("{}")
		}
		if _, err := tx.Exec(ctx, insertSQL,
			entry.EngagementID,
			entry.Seq,
			entry.EventType,
			entry.ActorRole,
			entry.FromStatus,
			entry.ToStatus,
			entry.Timestamp,
			payload,
		); err != nil {
			return fmt.Errorf("engagement: insert log entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("engagement: commit transition: %w", err)
	}
	return nil
}

func scanEngagement(row pgx.Row) (Engagement, error) {
	var e Engagement
	err := row.Scan(
		&e.ID,
		&e.BuyerID,
		&e.SupplierID,
		&e.Status,
		&e.Version,
		&e.Path,
		&e.Tier,
		&e.MatchScore,
		&e.MonthlyRate,
		&e.SizeSqft,
		&e.LeaseStartDate,
		&e.LeaseEndDate,
		&e.DeadlineAt,
		&e.TourScheduledFor,
		&e.TourRescheduleCount,
		&e.DeclinedBy,
		&e.DeclineReason,
		&e.DeclinedAt,
		&e.Checklist.InsuranceUploaded,
		&e.Checklist.CompanyDocsUploaded,
		&e.Checklist.PaymentMethodAdded,
		&e.BuyerSignedAt,
		&e.SupplierSignedAt,
		&e.Milestones.DealPingSentAt,
		&e.Milestones.DealPingRespondedAt,
		&e.Milestones.GuaranteeSignedAt,
		&e.Milestones.TourRequestedAt,
		&e.Milestones.TourConfirmedAt,
		&e.Milestones.TourCompletedAt,
		&e.Milestones.InstantBookRequestedAt,
		&e.Milestones.InstantBookConfirmedAt,
		&e.Milestones.AgreementSentAt,
		&e.Milestones.AgreementSignedAt,
		&e.Milestones.OnboardingStartedAt,
		&e.Milestones.OnboardingCompletedAt,
		&e.Milestones.LeaseStartedAt,
		&e.Milestones.LeaseEndedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}
