package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// healthProbeTimeout bounds the diagnostic queries in CheckHealth so a wedged
// database cannot hang a status command.
const healthProbeTimeout = 2 * time.Second

// Stats counts jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health folds Stats into the fixed lifecycle buckets diagnostic output uses.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var health HealthSummary
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusRunning:
			health.Running += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}

// CheckHealth inspects the queue database file, schema, and integrity,
// filling as much of the report as it can before the first failure.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: strconv.Itoa(schemaVersion),
	}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	switch info, err := os.Stat(s.path); {
	case errors.Is(err, os.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	probeCtx, cancel := context.WithTimeout(ensureContext(ctx), healthProbeTimeout)
	defer cancel()

	fail := func(step string, err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, fmt.Errorf("%s: %w", step, err)
	}

	if err := s.db.PingContext(probeCtx); err != nil {
		return fail("ping queue database", err)
	}
	health.DatabaseReadable = true

	var name string
	err := s.db.QueryRowContext(probeCtx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'queue_jobs'").Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fail("query table info", err)
	default:
		health.TableExists = true
	}

	if health.TableExists {
		columns, err := s.tableColumns(probeCtx)
		if err != nil {
			return fail("read table columns", err)
		}
		health.ColumnsPresent = columns
		health.MissingColumns = missingColumns(columns)

		if err := s.db.QueryRowContext(probeCtx, "SELECT COUNT(*) FROM queue_jobs").Scan(&health.TotalJobs); err != nil {
			return fail("count jobs", err)
		}
	}

	var verdict string
	if err := s.db.QueryRowContext(probeCtx, "PRAGMA integrity_check").Scan(&verdict); err != nil {
		return fail("integrity check", err)
	}
	health.IntegrityCheck = strings.EqualFold(verdict, "ok")

	return health, nil
}

func (s *Store) tableColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(queue_jobs)")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// missingColumns reports queue_jobs columns absent from have, in the order
// jobColumns declares them.
func missingColumns(have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, col := range have {
		present[col] = struct{}{}
	}
	var missing []string
	for _, col := range strings.Split(jobColumns, ", ") {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
