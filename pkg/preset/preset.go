package preset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultSessionMinutes is the session length used when a preset does not set one.
const DefaultSessionMinutes = 30

// ErrUnknownPreset is matched by every UnknownPresetError.
var ErrUnknownPreset = errors.New("unknown preset")

// Preset defines a named frequency session. Values are never mutated after the table is built.
type Preset struct {
	ID             string  `toml:"-" json:"id"`                  // ID is derived from the map key in TOML
	Name           string  `toml:"name" json:"name,omitempty"`   // Display name
	Title          string  `toml:"title" json:"title,omitempty"` // Display title
	FrequencyHz    float64 `toml:"frequency" json:"frequency_hz"`
	SessionMinutes float64 `toml:"session_minutes" json:"session_minutes"`
	SuccessRate    float64 `toml:"success_rate" json:"success_rate_hint"` // Display-only hint in [0, 1]
	AbjadValue     int     `toml:"abjad_value" json:"abjad_value,omitempty"`
}

// SessionSeconds returns the default session length in seconds.
func (p Preset) SessionSeconds() float64 {
	return p.SessionMinutes * 60
}

// Validate checks if the preset is usable for synthesis.
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("preset id cannot be empty")
	}
	if p.FrequencyHz <= 0 || !finite(p.FrequencyHz) {
		return fmt.Errorf("preset frequency must be positive, got %f", p.FrequencyHz)
	}
	if !finite(p.SessionMinutes) {
		return fmt.Errorf("preset session_minutes must be finite, got %f", p.SessionMinutes)
	}
	if p.SessionMinutes == 0 {
		p.SessionMinutes = DefaultSessionMinutes
	}
	if p.SessionMinutes < 0 {
		return fmt.Errorf("preset session_minutes must be positive, got %f", p.SessionMinutes)
	}
	if p.SuccessRate < 0.0 || p.SuccessRate > 1.0 || math.IsNaN(p.SuccessRate) {
		return fmt.Errorf("preset success_rate must be between 0.0 and 1.0, got %f", p.SuccessRate)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// UnknownPresetError reports a lookup for an id that is not in the table.
type UnknownPresetError struct {
	ID        string
	Available []string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown preset %q (available: %s)", e.ID, strings.Join(e.Available, ", "))
}

// Is lets errors.Is(err, ErrUnknownPreset) match.
func (e *UnknownPresetError) Is(target error) bool {
	return target == ErrUnknownPreset
}

// Table is an immutable id -> Preset lookup.
type Table struct {
	presets map[string]Preset
	ids     []string
}

// NewTable validates the presets and builds a table. Duplicate ids are rejected.
func NewTable(presets ...Preset) (*Table, error) {
	t := &Table{presets: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid preset '%s': %w", p.ID, err)
		}
		if _, ok := t.presets[p.ID]; ok {
			return nil, fmt.Errorf("duplicate preset '%s'", p.ID)
		}
		t.presets[p.ID] = p
		t.ids = append(t.ids, p.ID)
	}
	sort.Strings(t.ids)
	return t, nil
}

// Lookup returns the preset with the given id or an *UnknownPresetError.
func (t *Table) Lookup(id string) (Preset, error) {
	p, ok := t.presets[id]
	if !ok {
		return Preset{}, &UnknownPresetError{ID: id, Available: t.IDs()}
	}
	return p, nil
}

// IDs returns the sorted preset ids.
func (t *Table) IDs() []string {
	ids := make([]string, len(t.ids))
	copy(ids, t.ids)
	return ids
}

// All returns every preset ordered by id.
func (t *Table) All() []Preset {
	out := make([]Preset, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, t.presets[id])
	}
	return out
}

// Len returns the number of presets.
func (t *Table) Len() int {
	return len(t.ids)
}

// Merge returns a new table where overrides replace presets with the same id.
func (t *Table) Merge(overrides ...Preset) (*Table, error) {
	merged := make(map[string]Preset, len(t.presets)+len(overrides))
	for id, p := range t.presets {
		merged[id] = p
	}
	for _, p := range overrides {
		merged[p.ID] = p
	}
	all := make([]Preset, 0, len(merged))
	for _, p := range merged {
		all = append(all, p)
	}
	return NewTable(all...)
}
