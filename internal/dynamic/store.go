// Package dynamic implements the runtime tool source for toolrack: a
// PostgreSQL-backed store of tool definitions and a loader that reconciles
// the dispatch registry with the store's contents while the server runs.
//
// Definitions describe tools declaratively — a name, a parameter schema, and
// a handler kind with kind-specific settings — so operators can add, change,
// and remove tools without rebuilding the server.
package dynamic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the tool_definitions table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS tool_definitions (
    name         TEXT PRIMARY KEY,
    description  TEXT NOT NULL DEFAULT '',
    input_schema JSONB NOT NULL DEFAULT '{"type":"object"}',
    kind         TEXT NOT NULL,
    spec         JSONB NOT NULL DEFAULT '{}',
    enabled      BOOLEAN NOT NULL DEFAULT true,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tool_definitions_enabled ON tool_definitions(enabled);
`

// Handler kinds understood by the loader.
const (
	// KindTemplate renders a text template against the call arguments.
	KindTemplate = "template"

	// KindQuery executes a parameterised SQL query and returns the rows as
	// a JSON array.
	KindQuery = "query"
)

// ErrDefinitionNotFound is returned by [Store.Get] and [Store.Delete] when
// no definition with the requested name exists.
var ErrDefinitionNotFound = errors.New("dynamic: tool definition not found")

// Definition is one row of the tool_definitions table: a declaratively
// described runtime tool.
type Definition struct {
	// Name is the tool's unique name.
	Name string

	// Description is the tool's human-readable description.
	Description string

	// InputSchema is the JSON Schema document for the tool's parameters.
	InputSchema map[string]any

	// Kind selects the handler implementation: [KindTemplate] or [KindQuery].
	Kind string

	// Spec holds kind-specific settings:
	//   template — {"template": "..."}
	//   query    — {"query": "SELECT ...", "params": ["field", ...]}
	Spec map[string]any

	// Enabled controls whether the loader registers the tool.
	Enabled bool

	// CreatedAt and UpdatedAt are maintained by the store; UpdatedAt drives
	// the loader's change detection.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks that the definition is well formed enough to store.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dynamic: definition must have a non-empty name")
	}
	if d.Kind != KindTemplate && d.Kind != KindQuery {
		return fmt.Errorf("dynamic: definition %q has unknown kind %q", d.Name, d.Kind)
	}
	return nil
}

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads and writes tool definitions in PostgreSQL, serialising the
// schema and spec sub-documents as JSONB.
type Store struct {
	db DB
}

// NewStore creates a Store over the given connection or pool. The caller is
// responsible for calling [Store.Migrate] before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the tool_definitions table and
// index if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("dynamic: migrate: %w", err)
	}
	return nil
}

// List returns all definitions ordered by creation time, disabled ones
// included — the loader needs to see disablement to unregister.
func (s *Store) List(ctx context.Context) ([]Definition, error) {
	const query = `
		SELECT name, description, input_schema, kind, spec, enabled, created_at, updated_at
		FROM tool_definitions
		ORDER BY created_at, name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dynamic: list: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dynamic: list: %w", err)
	}
	return defs, nil
}

// Get returns the definition with the given name, or
// [ErrDefinitionNotFound].
func (s *Store) Get(ctx context.Context, name string) (*Definition, error) {
	const query = `
		SELECT name, description, input_schema, kind, spec, enabled, created_at, updated_at
		FROM tool_definitions
		WHERE name = $1`

	def, err := scanDefinition(s.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrDefinitionNotFound, name)
		}
		return nil, err
	}
	return &def, nil
}

// Create inserts a new definition. The database assigns the timestamps.
func (s *Store) Create(ctx context.Context, def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	schemaJSON, err := json.Marshal(emptyObject(def.InputSchema))
	if err != nil {
		return fmt.Errorf("dynamic: marshal input_schema: %w", err)
	}
	specJSON, err := json.Marshal(emptyObject(def.Spec))
	if err != nil {
		return fmt.Errorf("dynamic: marshal spec: %w", err)
	}

	const query = `
		INSERT INTO tool_definitions (name, description, input_schema, kind, spec, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		def.Name, def.Description, schemaJSON, def.Kind, specJSON, def.Enabled,
	).Scan(&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("dynamic: definition %q already exists", def.Name)
		}
		return fmt.Errorf("dynamic: create: %w", err)
	}
	return nil
}

// Delete removes the named definition, or returns [ErrDefinitionNotFound].
func (s *Store) Delete(ctx context.Context, name string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tool_definitions WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("dynamic: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrDefinitionNotFound, name)
	}
	return nil
}

// scanDefinition reads one definition row; row may be a pgx.Row or pgx.Rows.
func scanDefinition(row pgx.Row) (Definition, error) {
	var (
		def        Definition
		schemaJSON []byte
		specJSON   []byte
	)
	err := row.Scan(&def.Name, &def.Description, &schemaJSON, &def.Kind,
		&specJSON, &def.Enabled, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, err
		}
		return Definition{}, fmt.Errorf("dynamic: scan definition: %w", err)
	}
	if err := json.Unmarshal(schemaJSON, &def.InputSchema); err != nil {
		return Definition{}, fmt.Errorf("dynamic: unmarshal input_schema for %q: %w", def.Name, err)
	}
	if err := json.Unmarshal(specJSON, &def.Spec); err != nil {
		return Definition{}, fmt.Errorf("dynamic: unmarshal spec for %q: %w", def.Name, err)
	}
	return def, nil
}

// emptyObject substitutes an empty map for nil so JSONB columns never store
// SQL NULL.
func emptyObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique-violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
