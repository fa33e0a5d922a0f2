package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const defaultBatchSize = 1000

// Exporter bulk-reads tables in bounded batches. It has no side effects.
type Exporter struct {
	db        *sql.DB
	logger    *slog.Logger
	batchSize int
}

func NewExporter(db *sql.DB, logger *slog.Logger) *Exporter {
	return &Exporter{db: db, logger: logger, batchSize: defaultBatchSize}
}

// Export reads every row of the table in batchSize pages, ordered by the
// conflict key so the offset cursor is stable. If a batch read fails the
// rows fetched so far are returned alongside the error: a single table's
// failure is deliberately partial, not a failure of the whole backup.
func (e *Exporter) Export(ctx context.Context, spec TableSpec) ([]Row, error) {
	var rows []Row
	for offset := 0; ; offset += e.batchSize {
		batch, err := e.readBatch(ctx, spec, offset)
		if err != nil {
			e.logger.Error("export batch failed, keeping partial table",
				"table", spec.Name, "offset", offset, "rows_kept", len(rows), "error", err)
			return rows, fmt.Errorf("export %s at offset %d: %w", spec.Name, offset, err)
		}
		rows = append(rows, batch...)
		if len(batch) < e.batchSize {
			return rows, nil
		}
	}
}

func (e *Exporter) readBatch(ctx context.Context, spec TableSpec, offset int) ([]Row, error) {
	query := fmt.Sprintf(`SELECT * FROM %s`, spec.Name)
	var args []any
	if spec.ActiveFilter != nil {
		query += fmt.Sprintf(` WHERE %s = ?`, spec.ActiveFilter.Column)
		args = append(args, spec.ActiveFilter.Value)
	}
	query += fmt.Sprintf(` ORDER BY %s LIMIT ? OFFSET ?`, spec.ConflictKey)
	args = append(args, e.batchSize, offset)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var batch []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = jsonSafe(values[i])
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

// jsonSafe normalizes driver values so Encode/Decode round-trips cleanly.
// SQLite TEXT may scan as []byte, which encoding/json would base64-encode.
func jsonSafe(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
