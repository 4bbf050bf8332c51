// Package risk classifies shell commands into ordered risk levels.
//
// Classification is pure and never fails: malformed or unparseable input
// degrades to a conservative level instead of returning an error.
package risk

import (
	"encoding/json"
	"fmt"
)

// Level is the ordered risk classification of an action. Ordinal value is
// load-bearing: policy thresholds compare levels numerically.
type Level int

const (
	Safe Level = iota
	Caution
	Dangerous
	Blocked
)

var levelNames = map[Level]string{
	Safe:      "safe",
	Caution:   "caution",
	Dangerous: "dangerous",
	Blocked:   "blocked",
}

// String returns the lowercase name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level from its name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel resolves a level by its lowercase name.
func ParseLevel(s string) (Level, error) {
	for lvl, name := range levelNames {
		if name == s {
			return lvl, nil
		}
	}
	return Safe, fmt.Errorf("risk: unknown level %q", s)
}

// CommandRisk is the result of classifying one command string. Values are
// produced fresh per call and never mutated afterwards.
type CommandRisk struct {
	Level          Level    `json:"level"`
	Reason         string   `json:"reason"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
}
