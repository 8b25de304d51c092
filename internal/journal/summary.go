package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KindCount is the number of calls of one outcome kind.
type KindCount struct {
	Kind  string
	Count int
}

// CoreSummary aggregates the calls made by one Core.
type CoreSummary struct {
	Core       int
	Calls      int
	OK         int
	AvgLatency time.Duration
}

// Summary aggregates a journal, optionally scoped to one session.
type Summary struct {
	Sessions    int
	Calls       int
	Probes      int
	Kinds       []KindCount
	Cores       []CoreSummary
	Transitions int
	Syncs       int
	FailedSyncs int
	AvgDrift    time.Duration
}

// Summarize reads aggregate counts. An empty session covers every session.
func Summarize(ctx context.Context, db *sql.DB, session string) (Summary, error) {
	var out Summary
	filter, args := sessionFilter(session)

	if err := db.QueryRowContext(ctx,
		`SELECT count(DISTINCT session_id), count(*), count(*) FILTER (WHERE probe) FROM calls`+filter,
		args...,
	).Scan(&out.Sessions, &out.Calls, &out.Probes); err != nil {
		return Summary{}, fmt.Errorf("summarize calls: %w", err)
	}

	kinds, err := queryKinds(ctx, db, filter, args)
	if err != nil {
		return Summary{}, err
	}
	out.Kinds = kinds

	cores, err := queryCores(ctx, db, filter, args)
	if err != nil {
		return Summary{}, err
	}
	out.Cores = cores

	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM transitions`+filter, args...).Scan(&out.Transitions); err != nil {
		return Summary{}, fmt.Errorf("summarize transitions: %w", err)
	}

	var drift sql.NullFloat64
	if err := db.QueryRowContext(ctx,
		`SELECT count(*), count(*) FILTER (WHERE NOT ok), avg(drift_ms) FILTER (WHERE ok) FROM syncs`+filter,
		args...,
	).Scan(&out.Syncs, &out.FailedSyncs, &drift); err != nil {
		return Summary{}, fmt.Errorf("summarize syncs: %w", err)
	}
	if drift.Valid {
		out.AvgDrift = fromMillis(drift.Float64)
	}
	return out, nil
}

func queryKinds(ctx context.Context, db *sql.DB, filter string, args []any) ([]KindCount, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT kind, count(*) FROM calls`+filter+` GROUP BY kind ORDER BY count(*) DESC, kind`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize kinds: %w", err)
	}
	defer rows.Close()
	var kinds []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("scan kind: %w", err)
		}
		kinds = append(kinds, kc)
	}
	return kinds, rows.Err()
}

func queryCores(ctx context.Context, db *sql.DB, filter string, args []any) ([]CoreSummary, error) {
	where := " WHERE NOT probe"
	if filter != "" {
		where = filter + " AND NOT probe"
	}
	rows, err := db.QueryContext(ctx,
		`SELECT core, count(*), count(*) FILTER (WHERE kind = 'ok'), avg(latency_ms)
		 FROM calls`+where+` GROUP BY core ORDER BY core`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize cores: %w", err)
	}
	defer rows.Close()
	var cores []CoreSummary
	for rows.Next() {
		var cs CoreSummary
		var latency float64
		if err := rows.Scan(&cs.Core, &cs.Calls, &cs.OK, &latency); err != nil {
			return nil, fmt.Errorf("scan core: %w", err)
		}
		cs.AvgLatency = fromMillis(latency)
		cores = append(cores, cs)
	}
	return cores, rows.Err()
}

func sessionFilter(session string) (string, []any) {
	if session == "" {
		return "", nil
	}
	return " WHERE session_id = ?", []any{session}
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
