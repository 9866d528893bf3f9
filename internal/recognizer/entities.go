package recognizer

import (
	"strconv"
	"strings"
	"unicode"
)

// Response is the LUIS v2 prediction payload.
type Response struct {
	Query             string                 `json:"query"`
	AlteredQuery      string                 `json:"alteredQuery,omitempty"`
	TopScoringIntent  *IntentModel           `json:"topScoringIntent,omitempty"`
	Intents           []IntentModel          `json:"intents,omitempty"`
	Entities          []EntityModel          `json:"entities"`
	CompositeEntities []CompositeEntityModel `json:"compositeEntities,omitempty"`
	SentimentAnalysis *SentimentModel        `json:"sentimentAnalysis,omitempty"`
}

type IntentModel struct {
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
}

// EntityModel is one raw entity occurrence. EndIndex is inclusive on the
// wire.
type EntityModel struct {
	Entity     string         `json:"entity"`
	Type       string         `json:"type"`
	StartIndex *int           `json:"startIndex,omitempty"`
	EndIndex   *int           `json:"endIndex,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	Role       string         `json:"role,omitempty"`
	Resolution map[string]any `json:"resolution,omitempty"`
}

type CompositeEntityModel struct {
	ParentType string                `json:"parentType"`
	Value      string                `json:"value"`
	Children   []CompositeChildModel `json:"children"`
}

type CompositeChildModel struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type SentimentModel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Shape converts a raw LUIS response into a RecognizerResult. With verbose
// set, $instance metadata is attached per entity name.
func Shape(resp Response, verbose bool) RecognizerResult {
	out := RecognizerResult{
		Text:        resp.Query,
		AlteredText: resp.AlteredQuery,
		Intents:     shapeIntents(resp),
		Entities:    shapeEntities(resp.Entities, resp.CompositeEntities, verbose),
	}
	if resp.SentimentAnalysis != nil {
		out.Sentiment = &Sentiment{Label: resp.SentimentAnalysis.Label, Score: resp.SentimentAnalysis.Score}
	}
	return out
}

func shapeIntents(resp Response) map[string]IntentScore {
	intents := make(map[string]IntentScore)
	if len(resp.Intents) > 0 {
		for _, in := range resp.Intents {
			intents[normalizeIntent(in.Intent)] = IntentScore{Score: in.Score}
		}
		return intents
	}
	if resp.TopScoringIntent != nil {
		intents[normalizeIntent(resp.TopScoringIntent.Intent)] = IntentScore{Score: resp.TopScoringIntent.Score}
	}
	return intents
}

func shapeEntities(entities []EntityModel, composites []CompositeEntityModel, verbose bool) *Entities {
	out := newEntities(verbose)

	// Composites go first so the entities they cover drop out of the list.
	compositeTypes := make(map[string]struct{}, len(composites))
	for _, c := range composites {
		compositeTypes[c.ParentType] = struct{}{}
	}
	for _, c := range composites {
		entities = populateComposite(c, entities, out, verbose)
	}

	for _, e := range entities {
		if _, ok := compositeTypes[e.Type]; ok {
			continue
		}
		name := NormalizeEntityName(e.Type, e.Role)
		out.add(name, entityValue(e))
		out.addInstance(name, entityMetadata(e))
	}
	return out
}

// populateComposite records composite c in out and returns the entities
// that c did not consume.
func populateComposite(c CompositeEntityModel, entities []EntityModel, out *Entities, verbose bool) []EntityModel {
	var parent *EntityModel
	for i := range entities {
		if entities[i].Type == c.ParentType && entities[i].Entity == c.Value {
			parent = &entities[i]
			break
		}
	}

	children := newEntities(verbose)
	covered := make(map[int]struct{})
	if parent != nil && parent.StartIndex != nil && parent.EndIndex != nil {
		for _, child := range c.Children {
			for i, e := range entities {
				if _, done := covered[i]; done {
					continue
				}
				if child.Type != e.Type || e.StartIndex == nil || e.EndIndex == nil {
					continue
				}
				if *e.StartIndex < *parent.StartIndex || *e.EndIndex > *parent.EndIndex {
					continue
				}
				covered[i] = struct{}{}
				name := NormalizeEntityName(e.Type, e.Role)
				children.add(name, entityValue(e))
				children.addInstance(name, entityMetadata(e))
			}
		}
	}

	remaining := make([]EntityModel, 0, len(entities)-len(covered))
	for i, e := range entities {
		if _, done := covered[i]; !done {
			remaining = append(remaining, e)
		}
	}

	if parent == nil {
		out.add(NormalizeEntityName(c.ParentType, ""), children)
		return remaining
	}
	name := NormalizeEntityName(parent.Type, parent.Role)
	out.add(name, children)
	out.addInstance(name, entityMetadata(*parent))
	return remaining
}

// NormalizeEntityName maps a raw entity type (and optional role) to the
// key used in Entities. The result is stable under repeated application.
func NormalizeEntityName(entityType, role string) string {
	t := entityType
	if i := strings.LastIndex(t, ":"); i >= 0 {
		t = t[i+1:]
	}
	switch {
	case strings.HasPrefix(t, "builtin.datetimeV2."):
		t = "datetime"
	case strings.HasPrefix(t, "builtin.currency"):
		t = "money"
	}
	t = strings.TrimPrefix(t, "builtin.")
	if role != "" {
		t = role
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, t)
}

func normalizeIntent(name string) string {
	return strings.NewReplacer(".", "_", " ", "_").Replace(name)
}

func entityValue(e EntityModel) any {
	if len(e.Resolution) == 0 {
		return e.Entity
	}
	res := e.Resolution

	if strings.HasPrefix(e.Type, "builtin.datetimeV2.") {
		vals, ok := res["values"].([]any)
		if !ok || len(vals) == 0 {
			return res
		}
		dt := DateTimeValue{Timex: []string{}}
		if first, ok := vals[0].(map[string]any); ok {
			dt.Type, _ = first["type"].(string)
		}
		seen := make(map[string]struct{}, len(vals))
		for _, v := range vals {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			timex, _ := m["timex"].(string)
			if _, dup := seen[timex]; dup {
				continue
			}
			seen[timex] = struct{}{}
			dt.Timex = append(dt.Timex, timex)
		}
		return dt
	}

	switch e.Type {
	case "builtin.number", "builtin.ordinal":
		return toNumber(res["value"])
	case "builtin.percentage":
		if s, ok := res["value"].(string); ok {
			return toNumber(strings.TrimSuffix(s, "%"))
		}
		return toNumber(res["value"])
	case "builtin.age", "builtin.dimension", "builtin.currency", "builtin.temperature":
		uv := UnitValue{}
		if v, ok := res["value"]; ok && truthy(v) {
			if n, ok := toNumber(v).(float64); ok {
				uv.Number = &n
			}
		}
		uv.Units, _ = res["unit"].(string)
		return uv
	default:
		if len(res) > 1 {
			return res
		}
		if v, ok := res["value"]; ok && truthy(v) {
			return v
		}
		return res["values"]
	}
}

func entityMetadata(e EntityModel) InstanceData {
	meta := InstanceData{
		Score: e.Score,
		Text:  e.Entity,
		Type:  e.Type,
	}
	if e.StartIndex != nil {
		meta.StartIndex = *e.StartIndex
	}
	if e.EndIndex != nil {
		meta.EndIndex = *e.EndIndex + 1
	}
	if sub, ok := e.Resolution["subtype"].(string); ok && sub != "" {
		meta.Subtype = sub
	}
	return meta
}

// toNumber converts a resolution value to float64. Values that do not
// parse are returned unchanged.
func toNumber(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return n
		}
		return f
	default:
		return v
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}
