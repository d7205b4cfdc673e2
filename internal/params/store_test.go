package params

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := s.Snapshot()
	if snap.Global.NumServos != 31 {
		t.Errorf("NumServos = %d, want default 31", snap.Global.NumServos)
	}
}

func TestSetGlobalPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	s := NewStore(path)
	if err := s.SetGlobal("RATE_fps", 60.0); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s2.Snapshot().Global.RateFPS; got != 60 {
		t.Errorf("RateFPS after reload = %d, want 60", got)
	}
}

func TestLockedKeyRejectsMutation(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "params.json"))
	s.lockedKeys["PORT"] = struct{}{}
	err := s.SetGlobal("PORT", 9999.0)
	if _, ok := err.(ErrLocked); !ok {
		t.Fatalf("SetGlobal on locked key: got %v, want ErrLocked", err)
	}
	if s.Snapshot().Global.Port == 9999 {
		t.Error("locked key was mutated")
	}
}

func TestEmptyHostsListIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	s := NewStore(path)
	_ = s.SetGlobal("HOSTS", []any{})

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	hosts := s2.Snapshot().Global.Hosts
	if len(hosts) == 0 {
		t.Error("empty HOSTS list should fall back to defaults, got empty")
	}
}

func TestUnknownKeysLoadedVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	s := NewStore(path)
	if err := s.SetGlobal("CUSTOM_EXTRA", "kept"); err != nil {
		t.Fatalf("SetGlobal: %v", err)
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, ok := s2.RawGlobal("CUSTOM_EXTRA")
	if !ok || v != "kept" {
		t.Errorf("CUSTOM_EXTRA = %v, ok=%v, want \"kept\"", v, ok)
	}
}

func TestModeFallsBackWhenUnresolved(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "params.json"))
	_ = s.SetGlobal("MODE", "does-not-exist")
	snap := s.Snapshot()
	if !snap.ModeFellBack {
		t.Error("expected ModeFellBack for unresolved mode id")
	}
	if snap.Mode.Func != "sin" || snap.Mode.AmpMode != "solid" {
		t.Errorf("fallback mode = %+v, want sin/solid", snap.Mode)
	}
}

func TestCoerceRejectsTypeMismatch(t *testing.T) {
	if _, err := Coerce("ALPHA", 0.2, "not-a-number"); err == nil {
		t.Error("expected coercion error for string into float field")
	}
	v, err := Coerce("RATE_fps", 24.0, 60.0)
	if err != nil || v != 60.0 {
		t.Errorf("Coerce numeric: got %v, %v", v, err)
	}
}
