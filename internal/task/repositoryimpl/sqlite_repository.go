package repositoryimpl

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kazz187/sprintguild/internal/task"
	"github.com/kazz187/sprintguild/pkg/cerr"
)

//go:embed schema.sql
var schemaSQL string

// Fixed-width UTC timestamps so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `id, sprint_id, title, description, priority, status, order_index,
	archived_at, archived_by, archive_reason, created_at, updated_at`

// SQLiteRepository stores tasks in SQLite. Placement batches run in a single
// transaction, so a reorder is applied completely or not at all.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite serialises writers anyway and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Create(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return cerr.NewError(cerr.InvalidArgument, err.Error(), nil)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, t.ID).Scan(&exists)
		if err == nil {
			return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return cerr.WrapStorageWriteError("task", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks (`+selectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, taskArgs(t)...); err != nil {
			return cerr.WrapStorageWriteError("task", err)
		}
		return replaceTags(ctx, tx, t.ID, t.Tags)
	})
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cerr.NewError(cerr.NotFound, "task not found", err)
	}
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	tags, err := r.tagsFor(ctx, []string{t.ID})
	if err != nil {
		return nil, err
	}
	t.Tags = tags[t.ID]
	if err := t.Validate(); err != nil {
		return nil, cerr.WrapDecodeError("task", err)
	}
	return t, nil
}

func (r *SQLiteRepository) List(ctx context.Context, filter task.ListFilter) ([]*task.Task, error) {
	query := `SELECT ` + selectColumns + ` FROM tasks WHERE (? = '' OR sprint_id = ?)`
	switch filter.Partition {
	case task.PartitionVisible:
		query += ` AND archived_at IS NULL`
	case task.PartitionArchived:
		query += ` AND archived_at IS NOT NULL`
	}
	query += ` ORDER BY order_index, created_at, id`

	rows, err := r.db.QueryContext(ctx, query, filter.SprintID, filter.SprintID)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}
	defer rows.Close()

	var (
		all []*task.Task
		ids []string
	)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, cerr.WrapStorageReadError("tasks", err)
		}
		all = append(all, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}

	tags, err := r.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		t.Tags = tags[t.ID]
		if err := t.Validate(); err != nil {
			continue
		}
		out = append(out, t)
	}
	task.SortByOrder(out)
	return out, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return cerr.NewError(cerr.InvalidArgument, err.Error(), nil)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		args := append(taskArgs(t)[1:], t.ID)
		res, err := tx.ExecContext(ctx, `UPDATE tasks SET sprint_id = ?, title = ?, description = ?,
			priority = ?, status = ?, order_index = ?, archived_at = ?, archived_by = ?,
			archive_reason = ?, created_at = ?, updated_at = ? WHERE id = ?`, args...)
		if err != nil {
			return cerr.WrapStorageWriteError("task", err)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
		return replaceTags(ctx, tx, t.ID, t.Tags)
	})
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	if !status.Valid() {
		return cerr.NewValidationError("status", "status.enum", fmt.Sprintf("unknown status %q", status))
	}
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), id)
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) ApplyPlacements(ctx context.Context, placements []task.Placement) (int, error) {
	now := formatTime(time.Now())
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range placements {
			res, err := tx.ExecContext(ctx,
				`UPDATE tasks SET sprint_id = ?, order_index = ?, updated_at = ? WHERE id = ?`,
				p.SprintID, p.OrderIndex, now, p.TaskID)
			if err != nil {
				return cerr.WrapStorageWriteError("task", err)
			}
			if err := expectOneRow(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(placements), nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return cerr.WrapStorageDeleteError("task", err)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, id); err != nil {
			return cerr.WrapStorageDeleteError("task tags", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

func (r *SQLiteRepository) tagsFor(ctx context.Context, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	rows, err := r.db.QueryContext(ctx, `SELECT task_id, tag FROM task_tags ORDER BY task_id, tag`)
	if err != nil {
		return nil, cerr.WrapStorageReadError("task tags", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, cerr.WrapStorageReadError("task tags", err)
		}
		if _, ok := want[id]; ok {
			out[id] = append(out[id], tag)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapStorageReadError("task tags", err)
	}
	return out, nil
}

func replaceTags(ctx context.Context, tx *sql.Tx, taskID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
		return cerr.WrapStorageWriteError("task tags", err)
	}
	for _, tag := range task.NormalizeTags(tags) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_tags (task_id, tag) VALUES (?, ?)`, taskID, tag); err != nil {
			return cerr.WrapStorageWriteError("task tags", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t                    task.Task
		priority, status     string
		archivedAt           sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &t.SprintID, &t.Title, &t.Description, &priority, &status,
		&t.OrderIndex, &archivedAt, &t.ArchivedBy, &t.ArchiveReason, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Priority = task.Priority(priority)
	t.Status = task.Status(status)
	var err error
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if archivedAt.Valid {
		at, err := time.Parse(timeLayout, archivedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse archived_at: %w", err)
		}
		t.ArchivedAt = &at
	}
	return &t, nil
}

func taskArgs(t *task.Task) []any {
	var archivedAt sql.NullString
	if t.ArchivedAt != nil {
		archivedAt = sql.NullString{String: formatTime(*t.ArchivedAt), Valid: true}
	}
	return []any{
		t.ID, t.SprintID, t.Title, t.Description, string(t.Priority), string(t.Status), t.OrderIndex,
		archivedAt, t.ArchivedBy, t.ArchiveReason, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	}
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if n == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
