package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeHandle struct {
	id   string
	open bool
}

func (h *fakeHandle) ID() string          { return h.id }
func (h *fakeHandle) IsOpen() bool        { return h.open }
func (h *fakeHandle) Send(_ []byte) error { return nil }

func newHandle(id string) *fakeHandle {
	return &fakeHandle{id: id, open: true}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"sensor", RoleSensor, false},
		{"processor", RoleProcessor, false},
		{"dashboard", RoleDashboard, false},
		{"unknown", RoleUnknown, true},
		{"", RoleUnknown, true},
		{"Sensor", RoleUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownRole) {
					t.Errorf("ParseRole(%q) error = %v, want ErrUnknownRole", tt.in, err)
				}
			} else if err != nil {
				t.Errorf("ParseRole(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegistry_RegisterAndSnapshot(t *testing.T) {
	r := New()
	a := newHandle("a")
	b := newHandle("b")

	if err := r.Register("a", RoleProcessor, a); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("b", RoleProcessor, b); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	snap := r.Snapshot(RoleProcessor)
	if len(snap) != 2 {
		t.Fatalf("len(Snapshot) = %d, want 2", len(snap))
	}
	got := map[string]Handle{}
	for _, e := range snap {
		got[e.ID] = e.Handle
	}
	if got["a"] != a || got["b"] != b {
		t.Errorf("Snapshot = %+v, want a and b with their handles", snap)
	}

	if n := len(r.Snapshot(RoleSensor)); n != 0 {
		t.Errorf("sensor snapshot len = %d, want 0", n)
	}
	if n := len(r.Snapshot(RoleDashboard)); n != 0 {
		t.Errorf("dashboard snapshot len = %d, want 0", n)
	}
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := New()
	h := newHandle("a")

	r.Register("a", RoleSensor, h)
	before := r.Counts()
	r.Register("a", RoleSensor, h)
	after := r.Counts()

	for _, role := range Roles {
		if before[role] != after[role] {
			t.Errorf("count[%s] changed from %d to %d", role, before[role], after[role])
		}
	}
	if after[RoleSensor] != 1 {
		t.Errorf("count[sensor] = %d, want 1", after[RoleSensor])
	}
}

func TestRegistry_RegisterUnknownRole(t *testing.T) {
	r := New()

	err := r.Register("a", RoleUnknown, newHandle("a"))
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("Register(unknown) error = %v, want ErrUnknownRole", err)
	}
	for _, role := range Roles {
		if r.Count(role) != 0 {
			t.Errorf("count[%s] = %d, want 0", role, r.Count(role))
		}
	}
}

func TestRegistry_ReRegisterMovesGroup(t *testing.T) {
	r := New()
	h := newHandle("a")

	r.Register("a", RoleSensor, h)
	r.Register("a", RoleDashboard, h)

	if r.Count(RoleSensor) != 0 {
		t.Errorf("count[sensor] = %d, want 0 after move", r.Count(RoleSensor))
	}
	if r.Count(RoleDashboard) != 1 {
		t.Errorf("count[dashboard] = %d, want 1", r.Count(RoleDashboard))
	}
	if snap := r.Snapshot(RoleDashboard); len(snap) != 1 || snap[0].ID != "a" {
		t.Errorf("Snapshot(dashboard) = %+v, want only a", snap)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()
	r.Register("a", RoleProcessor, newHandle("a"))
	r.Register("b", RoleProcessor, newHandle("b"))

	r.Unregister("a", RoleProcessor)

	snap := r.Snapshot(RoleProcessor)
	if len(snap) != 1 || snap[0].ID != "b" {
		t.Errorf("Snapshot = %+v, want only b", snap)
	}
	if r.Count(RoleProcessor) != 1 {
		t.Errorf("count[processor] = %d, want 1", r.Count(RoleProcessor))
	}
}

func TestRegistry_UnregisterNoop(t *testing.T) {
	r := New()
	r.Register("a", RoleSensor, newHandle("a"))

	// Never registered, wrong group, and unknown role are all no-ops.
	r.Unregister("ghost", RoleSensor)
	r.Unregister("a", RoleDashboard)
	r.Unregister("a", RoleUnknown)

	if r.Count(RoleSensor) != 1 {
		t.Errorf("count[sensor] = %d, want 1", r.Count(RoleSensor))
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := New()
	r.Register("a", RoleDashboard, newHandle("a"))

	snap := r.Snapshot(RoleDashboard)
	r.Unregister("a", RoleDashboard)

	if len(snap) != 1 {
		t.Errorf("snapshot mutated after Unregister: len = %d, want 1", len(snap))
	}
	if r.Count(RoleDashboard) != 0 {
		t.Errorf("count[dashboard] = %d, want 0", r.Count(RoleDashboard))
	}
}

func TestRegistry_SnapshotUnknownRole(t *testing.T) {
	r := New()
	if snap := r.Snapshot(RoleUnknown); snap != nil {
		t.Errorf("Snapshot(unknown) = %+v, want nil", snap)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := New()
	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			role := Roles[w%len(Roles)]
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				r.Register(id, role, newHandle(id))
				_ = r.Snapshot(role)
				if i%2 == 0 {
					r.Unregister(id, role)
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, n := range r.Counts() {
		total += n
	}
	if want := workers * perWorker / 2; total != want {
		t.Errorf("total members = %d, want %d", total, want)
	}
}
