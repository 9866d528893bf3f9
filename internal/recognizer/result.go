package recognizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

const instanceKey = "$instance"

// IntentScore is the confidence assigned to one intent.
type IntentScore struct {
	Score float64 `json:"score"`
}

// Sentiment is the optional sentiment analysis of an utterance.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// InstanceData is the per-occurrence metadata attached to an entity when
// the recognizer runs in verbose mode. EndIndex is exclusive.
type InstanceData struct {
	StartIndex int      `json:"startIndex"`
	EndIndex   int      `json:"endIndex"`
	Score      *float64 `json:"score,omitempty"`
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Subtype    string   `json:"subtype,omitempty"`
}

// DateTimeValue is the canonical value of builtin.datetimeV2.* entities.
type DateTimeValue struct {
	Type  string   `json:"type"`
	Timex []string `json:"timex"`
}

// UnitValue is the canonical value of age, dimension, currency and
// temperature entities.
type UnitValue struct {
	Number *float64 `json:"number,omitempty"`
	Units  string   `json:"units,omitempty"`
}

// Entities maps a normalized entity name to the ordered values found for
// it. Composite entities carry a nested *Entities as their value. Instance
// is non-nil only in verbose mode.
type Entities struct {
	Values   map[string][]any
	Instance map[string][]InstanceData
}

func newEntities(verbose bool) *Entities {
	e := &Entities{Values: make(map[string][]any)}
	if verbose {
		e.Instance = make(map[string][]InstanceData)
	}
	return e
}

func (e *Entities) add(name string, value any) {
	e.Values[name] = append(e.Values[name], value)
}

func (e *Entities) addInstance(name string, meta InstanceData) {
	if e.Instance == nil {
		return
	}
	e.Instance[name] = append(e.Instance[name], meta)
}

// Names returns the entity names in sorted order.
func (e *Entities) Names() []string {
	if e == nil {
		return nil
	}
	names := make([]string, 0, len(e.Values))
	for k := range e.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Has reports whether at least one value was found for name.
func (e *Entities) Has(name string) bool {
	return e != nil && len(e.Values[name]) > 0
}

// String returns the first value of name when it is a string.
func (e *Entities) String(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, v := range e.Values[name] {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func (e *Entities) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Values)+1)
	for k, v := range e.Values {
		out[k] = v
	}
	if e.Instance != nil {
		out[instanceKey] = e.Instance
	}
	return json.Marshal(out)
}

func (e *Entities) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("recognizer: decode entities: %w", err)
	}
	e.Values = make(map[string][]any, len(raw))
	e.Instance = nil
	for k, v := range raw {
		if k == instanceKey {
			if err := json.Unmarshal(v, &e.Instance); err != nil {
				return fmt.Errorf("recognizer: decode entity metadata: %w", err)
			}
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			return fmt.Errorf("recognizer: decode entity %q: %w", k, err)
		}
		values := make([]any, 0, len(items))
		for _, item := range items {
			val, err := decodeEntityValue(item)
			if err != nil {
				return fmt.Errorf("recognizer: decode entity %q: %w", k, err)
			}
			values = append(values, val)
		}
		e.Values[k] = values
	}
	return nil
}

// decodeEntityValue restores nested composites (objects carrying their own
// $instance block); every other value decodes generically.
func decodeEntityValue(item json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) > 0 && trimmed[0] == '{' && bytes.Contains(trimmed, []byte(`"`+instanceKey+`"`)) {
		child := &Entities{}
		if err := json.Unmarshal(trimmed, child); err != nil {
			return nil, err
		}
		return child, nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// RecognizerResult is the canonical output of intent and entity
// recognition.
type RecognizerResult struct {
	Text        string                 `json:"text"`
	AlteredText string                 `json:"alteredText,omitempty"`
	Intents     map[string]IntentScore `json:"intents"`
	Entities    *Entities              `json:"entities,omitempty"`
	Sentiment   *Sentiment             `json:"sentiment,omitempty"`
}

// Entity returns the first string value of the named entity.
func (r *RecognizerResult) Entity(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.Entities.String(name)
}

// HasEntities reports whether the result carries an entities block at all.
func (r *RecognizerResult) HasEntities() bool {
	return r != nil && r.Entities != nil
}

// TopIntent returns the highest scoring intent of r, or defaultIntent when
// r has no intent scoring at least minScore. Ties keep the intent whose name
// sorts first.
func TopIntent(r *RecognizerResult, defaultIntent string, minScore float64) string {
	if r == nil || len(r.Intents) == 0 {
		return defaultIntent
	}
	names := make([]string, 0, len(r.Intents))
	for name := range r.Intents {
		names = append(names, name)
	}
	sort.Strings(names)

	top, topScore := "", -1.0
	for _, name := range names {
		score := r.Intents[name].Score
		if score > topScore && score >= minScore {
			top, topScore = name, score
		}
	}
	if top == "" {
		return defaultIntent
	}
	return top
}
