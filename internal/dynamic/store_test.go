package dynamic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Test helpers — mock DB types
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows for testing. Each element of data is one row;
// cols names the columns for Values/FieldDescriptions.
type mockRows struct {
	cols   []string
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                        { r.closed = true }
func (r *mockRows) Err() error                    { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *mockRows) RawValues() [][]byte           { return nil }
func (r *mockRows) Conn() *pgx.Conn               { return nil }

func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Values() ([]any, error) {
	return r.data[r.idx-1], nil
}

func (r *mockRows) Scan(dest ...any) error {
	return scanInto(r.data[r.idx-1], dest...)
}

// scanInto copies row values into scan destinations by type.
func scanInto(row []any, dest ...any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination type %T", d)
		}
	}
	return nil
}

// mockDB implements the DB interface with scripted responses.
type mockDB struct {
	queryRowFunc func(sql string, args ...any) pgx.Row
	queryFunc    func(sql string, args ...any) (pgx.Rows, error)
	execFunc     func(sql string, args ...any) (pgconn.CommandTag, error)
}

func (db *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return db.queryRowFunc(sql, args...)
}

func (db *mockDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.queryFunc(sql, args...)
}

func (db *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if db.execFunc != nil {
		return db.execFunc(sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// defRow encodes a Definition as a raw result row in column order.
func defRow(t *testing.T, def Definition) []any {
	t.Helper()
	schemaJSON, err := json.Marshal(emptyObject(def.InputSchema))
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	specJSON, err := json.Marshal(emptyObject(def.Spec))
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	return []any{def.Name, def.Description, schemaJSON, def.Kind, specJSON,
		def.Enabled, def.CreatedAt, def.UpdatedAt}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_List(t *testing.T) {
	now := time.Now()
	db := &mockDB{
		queryFunc: func(_ string, _ ...any) (pgx.Rows, error) {
			return &mockRows{data: [][]any{
				defRow(t, Definition{
					Name: "greet", Kind: KindTemplate,
					InputSchema: map[string]any{"type": "object"},
					Spec:        map[string]any{"template": "hello {{.name}}"},
					Enabled:     true, CreatedAt: now, UpdatedAt: now,
				}),
				defRow(t, Definition{
					Name: "lookup", Kind: KindQuery,
					Spec:    map[string]any{"query": "SELECT 1"},
					Enabled: false, CreatedAt: now, UpdatedAt: now,
				}),
			}}, nil
		},
	}

	defs, err := NewStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("List returned %d definitions, want 2", len(defs))
	}
	if defs[0].Name != "greet" || defs[0].Spec["template"] != "hello {{.name}}" {
		t.Errorf("defs[0] = %+v", defs[0])
	}
	if defs[1].Enabled {
		t.Error("defs[1].Enabled = true, want false")
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(_ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
		},
	}

	_, err := NewStore(db).Get(context.Background(), "nope")
	if !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("err = %v, want ErrDefinitionNotFound", err)
	}
}

func TestStore_Create_Validates(t *testing.T) {
	s := NewStore(&mockDB{})

	if err := s.Create(context.Background(), &Definition{Kind: KindTemplate}); err == nil {
		t.Error("Create accepted empty name")
	}
	if err := s.Create(context.Background(), &Definition{Name: "x", Kind: "rpc"}); err == nil {
		t.Error("Create accepted unknown kind")
	}
}

func TestStore_Create_DuplicateKey(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(_ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(_ ...any) error {
				return &pgconn.PgError{Code: "23505"}
			}}
		},
	}

	err := NewStore(db).Create(context.Background(), &Definition{Name: "dup", Kind: KindTemplate})
	if err == nil || err.Error() != `dynamic: definition "dup" already exists` {
		t.Errorf("err = %v, want duplicate message", err)
	}
}

func TestStore_Delete_NotFound(t *testing.T) {
	db := &mockDB{
		execFunc: func(_ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}

	err := NewStore(db).Delete(context.Background(), "nope")
	if !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("err = %v, want ErrDefinitionNotFound", err)
	}
}
