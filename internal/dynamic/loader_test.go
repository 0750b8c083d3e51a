package dynamic

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/toolrack/toolrack/internal/registry"
)

// fakeRegistrar records loader mutations in order.
type fakeRegistrar struct {
	registered   map[string]string // name -> description
	unregistered []string
	failWith     error
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{registered: make(map[string]string)}
}

func (f *fakeRegistrar) RegisterTool(name, description string, _ any, _ registry.Handler[struct{}]) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.registered[name] = description
	return nil
}

func (f *fakeRegistrar) UnregisterTool(name string) error {
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.registered, name)
	f.unregistered = append(f.unregistered, name)
	return nil
}

// listStore returns a Store whose List yields the given definitions; the
// slice pointer lets tests mutate the "database" between syncs.
func listStore(t *testing.T, defs *[]Definition) *Store {
	t.Helper()
	return NewStore(&mockDB{
		queryFunc: func(_ string, _ ...any) (pgx.Rows, error) {
			rows := &mockRows{}
			for _, def := range *defs {
				rows.data = append(rows.data, defRow(t, def))
			}
			return rows, nil
		},
	})
}

func templateDef(name string, updatedAt time.Time, enabled bool) Definition {
	return Definition{
		Name:        name,
		Description: "rendered " + name,
		Kind:        KindTemplate,
		Spec:        map[string]any{"template": name + " says {{.word}}"},
		Enabled:     enabled,
		CreatedAt:   updatedAt,
		UpdatedAt:   updatedAt,
	}
}

func TestLoader_RegistersEnabledDefinitions(t *testing.T) {
	now := time.Now()
	defs := []Definition{
		templateDef("greet", now, true),
		templateDef("ignored", now, false),
	}
	reg := newFakeRegistrar()
	l := NewLoader[struct{}](listStore(t, &defs), reg)

	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, ok := reg.registered["greet"]; !ok {
		t.Error("greet was not registered")
	}
	if _, ok := reg.registered["ignored"]; ok {
		t.Error("disabled definition was registered")
	}
}

func TestLoader_SecondSyncIsIdempotent(t *testing.T) {
	now := time.Now()
	defs := []Definition{templateDef("greet", now, true)}
	reg := newFakeRegistrar()
	l := NewLoader[struct{}](listStore(t, &defs), reg)

	for i := 0; i < 2; i++ {
		if err := l.Sync(context.Background()); err != nil {
			t.Fatalf("Sync %d: %v", i, err)
		}
	}
	if len(reg.unregistered) != 0 {
		t.Errorf("unchanged definition was churned: unregistered %v", reg.unregistered)
	}
}

func TestLoader_RemovesDeletedAndDisabled(t *testing.T) {
	now := time.Now()
	defs := []Definition{
		templateDef("keep", now, true),
		templateDef("gone", now, true),
		templateDef("off", now, true),
	}
	reg := newFakeRegistrar()
	l := NewLoader[struct{}](listStore(t, &defs), reg)
	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("initial Sync: %v", err)
	}

	// "gone" is deleted, "off" is disabled.
	defs = []Definition{
		templateDef("keep", now, true),
		templateDef("off", now, false),
	}
	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	if _, ok := reg.registered["gone"]; ok {
		t.Error("deleted definition still registered")
	}
	if _, ok := reg.registered["off"]; ok {
		t.Error("disabled definition still registered")
	}
	if _, ok := reg.registered["keep"]; !ok {
		t.Error("untouched definition was removed")
	}
}

func TestLoader_ReplacesChangedDefinition(t *testing.T) {
	base := time.Now()
	defs := []Definition{templateDef("greet", base, true)}
	reg := newFakeRegistrar()
	l := NewLoader[struct{}](listStore(t, &defs), reg)
	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("initial Sync: %v", err)
	}

	changed := templateDef("greet", base.Add(time.Minute), true)
	changed.Description = "updated"
	defs = []Definition{changed}
	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("second Sync: %v", err)
	}

	if len(reg.unregistered) != 1 || reg.unregistered[0] != "greet" {
		t.Errorf("unregistered = %v, want [greet]", reg.unregistered)
	}
	if reg.registered["greet"] != "updated" {
		t.Errorf("registered description = %q, want updated", reg.registered["greet"])
	}
}

func TestLoader_SkipsMalformedDefinition(t *testing.T) {
	now := time.Now()
	defs := []Definition{
		{Name: "broken", Kind: KindTemplate, Spec: map[string]any{}, Enabled: true, UpdatedAt: now},
		templateDef("fine", now, true),
	}
	reg := newFakeRegistrar()
	l := NewLoader[struct{}](listStore(t, &defs), reg)

	if err := l.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, ok := reg.registered["broken"]; ok {
		t.Error("malformed definition was registered")
	}
	if _, ok := reg.registered["fine"]; !ok {
		t.Error("well-formed definition was skipped")
	}
}
