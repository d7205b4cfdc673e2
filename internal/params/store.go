// Package params implements the process-wide Parameter Store: a flat map of
// global parameters and a nested map of named modes, persisted to a
// human-readable JSON document on every mutation and reloaded at startup.
package params

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/solenoid-array/helixdrive/internal/obs"
)

const defaultParamsFile = "params.json"

// Store is the process-wide, thread-safe configuration singleton described
// in spec.md §3 and §9. Frame reads go through Snapshot; all writes persist
// synchronously before returning.
type Store struct {
	mu         sync.RWMutex
	path       string
	global     map[string]any
	modes      map[string]map[string]any
	lockedKeys map[string]struct{}
	log        *obs.Logger
}

// NewStore builds a Store seeded with defaults. Call Load to overlay a
// persisted document, exactly as original_source/osc_params.py does at
// import time (load_params() runs once at module load).
func NewStore(path string) *Store {
	if path == "" {
		path = defaultParamsFile
	}
	s := &Store{
		path:       path,
		global:     defaultGlobal(),
		modes:      map[string]map[string]any{},
		lockedKeys: map[string]struct{}{},
		log:        obs.New("params"),
	}
	return s
}

func defaultGlobal() map[string]any {
	return map[string]any{
		"MODE":                   "1",
		"NUM_SERVOS":             31,
		"RATE_fps":               24,
		"ALPHA":                  0.2,
		"STROKE_OFFSET":          0,
		"LIMIT_ABSOLUTE":         100000,
		"LIMIT_RELATIONAL":       100000,
		"LIMIT_SPEED":            100000,
		"Kp":                     0.06,
		"Ki":                     0.0,
		"Kd":                     0.0,
		"K_VAL_NORMAL":           25,
		"K_VAL_HOLD":             10,
		"HOSTS":                  []any{"127.0.0.1"},
		"PORT":                   50000,
		"GHOST_HOST":             "127.0.0.1",
		"GHOST_PORT":             50000,
		"SEND_CLIENTS":           true,
		"SEND_CLIENT_GH":         false,
		"VALS_PER_HOST":          8,
		"STROKE_LENGTH_LIMIT":    50000,
		"MOTOR_POSITION_MAPPING": []any{},
		"RECV_PORTS":             []any{},
		"HOMING_TIMEOUT":         21.0,
		"GETPOS_TIMEOUT":         2.0,
		"BOOT_WAIT":              10.0,
		"NEUTRAL_SPEED":          20000.0,
		"EXPECTED_BOOT_PORTS":    1,
		"LUT_Y":                  []any{-1.0, -2.0 / 3, -1.0 / 3, 0.0, 1.0 / 3, 2.0 / 3, 1.0},
		"LOCKED_KEYS":            []any{},
	}
}

// Load reads the persisted JSON document at s.path, overlaying it onto the
// defaults. Missing file: keep defaults, as osc_params.py's load_params does
// on its bare except. Unknown top-level keys are preserved verbatim. A HOSTS
// field equal to an empty list is ignored, per spec.md §6.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Debugf("no existing %s found, using defaults", s.path)
		return nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("params: parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok := doc["MODES"]; ok {
		var modes map[string]map[string]any
		if err := json.Unmarshal(raw, &modes); err == nil {
			for id, m := range modes {
				s.modes[id] = m
			}
		}
		delete(doc, "MODES")
	}
	for k, raw := range doc {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if k == "HOSTS" {
			if list, ok := v.([]any); ok && len(list) == 0 {
				continue
			}
		}
		s.global[k] = v
	}
	if lk, ok := s.global["LOCKED_KEYS"].([]any); ok {
		s.lockedKeys = map[string]struct{}{}
		for _, k := range lk {
			if ks, ok := k.(string); ok {
				s.lockedKeys[ks] = struct{}{}
			}
		}
	}
	return nil
}

// save persists the full document. Callers must hold s.mu (read or write).
func (s *Store) save() error {
	doc := make(map[string]any, len(s.global)+1)
	for k, v := range s.global {
		doc[k] = v
	}
	doc["MODES"] = s.modes
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("params: marshal: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Locked reports whether key rejects mutation.
func (s *Store) Locked(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lockedKeys[key]
	return ok
}

// SetGlobal mutates a top-level parameter. Mutation is atomic: either the
// new value and the persisted file both change, or neither does.
func (s *Store) SetGlobal(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, locked := s.lockedKeys[key]; locked {
		s.log.Warnf("rejected mutation of locked key %q", key)
		return ErrLocked{Key: key}
	}
	prev, existed := s.global[key]
	s.global[key] = value
	if err := s.save(); err != nil {
		if existed {
			s.global[key] = prev
		} else {
			delete(s.global, key)
		}
		return err
	}
	return nil
}

// SetMode mutates a parameter scoped to modeID, creating the mode entry if
// absent, per osc_params.py's set_param_mode.
func (s *Store) SetMode(modeID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, locked := s.lockedKeys[key]; locked {
		s.log.Warnf("rejected mutation of locked key %q", key)
		return ErrLocked{Key: key}
	}
	mode, ok := s.modes[modeID]
	if !ok {
		mode = map[string]any{}
		s.modes[modeID] = mode
	}
	prev, existed := mode[key]
	mode[key] = value
	if err := s.save(); err != nil {
		if existed {
			mode[key] = prev
		} else {
			delete(mode, key)
		}
		return err
	}
	return nil
}

// ActiveModeID returns the current MODE key.
func (s *Store) ActiveModeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stringOr(s.global["MODE"], "1")
}

// ErrLocked is returned when a mutation targets a locked key.
type ErrLocked struct{ Key string }

func (e ErrLocked) Error() string { return fmt.Sprintf("params: key %q is locked", e.Key) }

// ErrCoerce is returned when an incoming value cannot be cast to the
// existing parameter's type.
type ErrCoerce struct {
	Key  string
	Want string
	Got  any
}

func (e ErrCoerce) Error() string {
	return fmt.Sprintf("params: cannot coerce %q: want %s, got %T", e.Key, e.Want, e.Got)
}
