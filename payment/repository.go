package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSettlementReader reads the settlements the external payment collaborator
// records. The engine only reads these rows.
type PGSettlementReader struct {
	pool *pgxpool.Pool
}

// NewSettlementReader wires a pgxpool-backed settlement read model.
func NewSettlementReader(pool *pgxpool.Pool) *PGSettlementReader {
	return &PGSettlementReader{pool: pool}
}

// PaidPeriods returns the period start dates settled for an engagement.
func (r *PGSettlementReader) PaidPeriods(ctx context.Context, engagementID string) ([]time.Time, error) {
	const query = `
		SELECT period_start
		FROM settlements
		WHERE engagement_id = $1 AND paid_at IS NOT NULL
		ORDER BY period_start ASC`

	rows, err := r.pool.Query(ctx, query, engagementID)
	if err != nil {
		return nil, fmt.Errorf("payment: list settlements: %w", err)
	}
	defer rows.Close()

	out := make([]time.Time, 0, 12)
	for rows.Next() {
		var period time.Time
		if err := rows.Scan(&period); err != nil {
			return nil, fmt.Errorf("payment: scan settlement: %w", err)
		}
		out = append(out, period)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: iterate settlements: %w", err)
	}
	return out, nil
}
