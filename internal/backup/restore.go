package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/opsdeck/opsdeck/internal/model"
)

const restoreBatchSize = 500

// RestoreOptions tune one restore run.
type RestoreOptions struct {
	// VerifyChecksum recomputes the snapshot digest and compares it to the
	// catalog value before any row is written. Off by default: the recorded
	// checksum is an audit-trail fingerprint, and verification is an
	// explicit opt-in rather than a silent behavior change.
	VerifyChecksum bool
}

// RunRestore downloads the backup's snapshot and replays each table through
// batched upserts, recording a restore log with per-table counts. Restore is
// never atomic across tables or batches: a failed batch is recorded and
// skipped, and later batches for the same table are still attempted.
func (m *Manager) RunRestore(ctx context.Context, backupID string, userID int64, opts RestoreOptions) (*model.RestoreLogRecord, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}

	record, err := m.backups.GetByID(backupID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrBackupNotFound
	}

	// A download or decode failure propagates with no restore log: the
	// snapshot was never obtained, so there is no attempt to record.
	data, err := m.downloadSnapshot(ctx, client, record)
	if err != nil {
		return nil, err
	}

	if opts.VerifyChecksum {
		if sum := Checksum(data); sum != record.Checksum {
			return nil, fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch, record.Checksum, sum)
		}
	}

	snapshot, err := Decode(data)
	if err != nil {
		return nil, err
	}

	// The restore trusts the snapshot's own keys, not the catalog's
	// tables_included; the two should agree but the artifact wins.
	tables := m.orderedTables(snapshot)

	logID := uuid.NewString()
	logRecord, err := m.restoreLogs.Create(logID, record.ID, userID, tables)
	if err != nil {
		return nil, fmt.Errorf("create restore log: %w", err)
	}

	counts := make(map[string]int64, len(tables))
	var restoreErrs error

	for _, table := range tables {
		rows := snapshot[table]
		counts[table] = 0
		if len(rows) == 0 {
			continue
		}
		if !validIdent(table) {
			restoreErrs = multierr.Append(restoreErrs, fmt.Errorf("%s: invalid table name", table))
			continue
		}
		spec := m.registry.Lookup(table)

		for start := 0; start < len(rows); start += restoreBatchSize {
			end := min(start+restoreBatchSize, len(rows))
			batch := rows[start:end]
			if err := m.upsertBatch(ctx, spec, batch); err != nil {
				m.logger.Error("restore batch failed, continuing",
					"table", table, "offset", start, "error", err)
				restoreErrs = multierr.Append(restoreErrs, fmt.Errorf("%s: %v", table, err))
				continue
			}
			counts[table] += int64(len(batch))
		}
	}

	status := model.RestoreStatusCompleted
	errMsg := ""
	if restoreErrs != nil {
		status = model.RestoreStatusCompletedWithErrors
		msgs := make([]string, 0)
		for _, e := range multierr.Errors(restoreErrs) {
			msgs = append(msgs, e.Error())
		}
		errMsg = strings.Join(msgs, "; ")
	}

	if err := m.restoreLogs.Finalize(logID, status, counts, errMsg); err != nil {
		return nil, fmt.Errorf("finalize restore log: %w", err)
	}

	return m.restoreLogs.GetByID(logRecord.ID)
}

// orderedTables returns the snapshot's table names deterministically:
// registry order for known tables, then any remaining names sorted.
func (m *Manager) orderedTables(snapshot Snapshot) []string {
	seen := make(map[string]bool, len(snapshot))
	var tables []string
	for _, name := range m.registry.Names() {
		if _, ok := snapshot[name]; ok {
			tables = append(tables, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range snapshot {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(tables, rest...)
}

// upsertBatch replays one batch of rows inside a single transaction, using
// the table's conflict key as the upsert target. The batch succeeds or fails
// as a unit.
func (m *Manager) upsertBatch(ctx context.Context, spec TableSpec, batch []Row) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for _, row := range batch {
		query, args, err := buildUpsert(spec, row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// buildUpsert renders INSERT ... ON CONFLICT(pk) DO UPDATE for one row.
// Columns are sorted so the statement shape is deterministic for a given
// row shape.
func buildUpsert(spec TableSpec, row Row) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("empty row")
	}

	cols := make([]string, 0, len(row))
	for col := range row {
		if !validIdent(col) {
			return "", nil, fmt.Errorf("invalid column name %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	var setClauses []string
	for i, col := range cols {
		placeholders[i] = "?"
		args[i] = sqlValue(row[col])
		if col != spec.ConflictKey {
			setClauses = append(setClauses, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO ",
		spec.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "), spec.ConflictKey)
	if len(setClauses) == 0 {
		b.WriteString("NOTHING")
	} else {
		b.WriteString("UPDATE SET " + strings.Join(setClauses, ", "))
	}
	return b.String(), args, nil
}

// sqlValue converts decoded JSON values to driver-friendly ones. Nested
// structures (columns holding JSON documents) are stored re-serialized.
func sqlValue(v any) any {
	switch val := v.(type) {
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return v
	}
}
