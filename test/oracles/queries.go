// Package oracles holds the SQL invariants the stress harness checks while
// actors hammer the engagement tables. Each query returns rows only when its
// invariant is violated.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_seq_gapless_monotonic",
			SQL: `WITH seqs AS (
                      SELECT engagement_id, seq,
                             LAG(seq) OVER (PARTITION BY engagement_id ORDER BY seq) AS prev
                      FROM engagement_events)
                  SELECT * FROM seqs
                  WHERE (prev IS NULL AND seq <> 1)
                     OR (prev IS NOT NULL AND seq <> prev + 1)`,
		},
		{
			Name: "O2_version_matches_log",
			SQL: `SELECT e.id, e.version, COALESCE(MAX(ev.seq), 0) AS last_seq
                  FROM engagements e
                  LEFT JOIN engagement_events ev ON ev.engagement_id = e.id
                  GROUP BY e.id, e.version
                  HAVING e.version <> COALESCE(MAX(ev.seq), 0) + 1`,
		},
		{
			Name: "O3_no_event_after_terminal",
			SQL: `WITH ordered AS (
                      SELECT engagement_id, seq,
                             LAG(to_status) OVER (PARTITION BY engagement_id ORDER BY seq) AS prev_to
                      FROM engagement_events)
                  SELECT * FROM ordered
                  WHERE prev_to IN ('completed','declined_by_buyer','declined_by_supplier',
                                    'expired','deal_ping_expired','deal_ping_declined')`,
		},
		{
			Name: "O4_log_chain_consistent",
			SQL: `WITH ordered AS (
                      SELECT engagement_id, seq, from_status,
                             LAG(to_status) OVER (PARTITION BY engagement_id ORDER BY seq) AS prev_to
                      FROM engagement_events)
                  SELECT * FROM ordered
                  WHERE prev_to IS NOT NULL AND from_status <> prev_to`,
		},
		{
			Name: "O5_log_head_matches_row",
			SQL: `SELECT e.id, e.status, latest.to_status
                  FROM engagements e
                  JOIN LATERAL (
                      SELECT to_status FROM engagement_events
                      WHERE engagement_id = e.id ORDER BY seq DESC LIMIT 1
                  ) latest ON true
                  WHERE e.status <> latest.to_status`,
		},
		{
			Name: "O6_decline_rows_complete",
			SQL: `SELECT id, status, declined_by, declined_at FROM engagements
                  WHERE status IN ('declined_by_buyer','declined_by_supplier','deal_ping_declined')
                    AND (declined_by IS NULL OR declined_at IS NULL)`,
		},
		{
			Name: "O7_active_requires_onboarding",
			SQL: `SELECT id FROM engagements
                  WHERE status IN ('active','completed')
                    AND NOT (insurance_uploaded AND company_docs_uploaded AND payment_method_added
                             AND lease_started_at IS NOT NULL)`,
		},
		{
			Name: "O8_single_path",
			SQL: `SELECT id, path, tour_requested_at, instant_book_requested_at FROM engagements
                  WHERE (tour_requested_at IS NOT NULL AND instant_book_requested_at IS NOT NULL)
                     OR (path = 'tour' AND instant_book_requested_at IS NOT NULL)
                     OR (path = 'instant_book' AND tour_requested_at IS NOT NULL)`,
		},
		{
			Name: "O9_deadline_only_when_bound",
			SQL: `SELECT id, status, deadline_at FROM engagements
                  WHERE deadline_at IS NOT NULL
                    AND status NOT IN ('deal_ping_sent','tour_requested','tour_rescheduled')`,
		},
		{
			Name: "O10_instant_book_tier1_only",
			SQL: `SELECT id, tier FROM engagements
                  WHERE path = 'instant_book' AND tier <> 'tier_1'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text), or an empty name when every invariant holds.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
