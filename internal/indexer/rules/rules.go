// Package rules evaluates schema rules against incoming documents to decide
// which index spec(s) should receive them and what attributes to attach,
// spec.md §3's SchemaRule/MatchAction and §4.10's "documents enter via a
// schema-rule match producing MatchAction{spec, attrs}".
package rules

// Kind is a SchemaRule's match discriminator.
type Kind int

const (
	KindPrefix Kind = iota
	KindExpression
	KindHasField
	KindMatchAll
	KindCustom
)

// ActionKind is the effect a matching rule has on a document.
type ActionKind int

const (
	ActionIndex ActionKind = iota
	ActionSetAttrs
	ActionLoadAttrs
	ActionGoto
	ActionAbort
	ActionCustom
)

// MatchAction is the outcome of one matched rule.
type MatchAction struct {
	Kind ActionKind
	// Spec names the index spec to route the document to, for ActionIndex.
	Spec string
	// Attrs carries the attribute set for ActionSetAttrs/ActionLoadAttrs.
	Attrs map[string]string
	// GotoRule names the rule to jump to for ActionGoto.
	GotoRule string
	// Custom is invoked for ActionCustom.
	Custom func(doc Document) error
}

// Document is the minimal view a rule evaluates against: the document's key
// and its field values at ingestion time.
type Document struct {
	Key    string
	Fields map[string]string
}

// SchemaRule is one entry in the ordered rule list spec.md §3 describes.
type SchemaRule struct {
	Name string
	Kind Kind
	// Data holds the kind-specific match payload: the prefix string for
	// KindPrefix, the field name for KindHasField, the (trivial) expression
	// text for KindExpression ("field=value").
	Data        string
	Action      MatchAction
	CustomMatch func(doc Document) bool
}

func (r SchemaRule) matches(doc Document) bool {
	switch r.Kind {
	case KindPrefix:
		return len(doc.Key) >= len(r.Data) && doc.Key[:len(r.Data)] == r.Data
	case KindHasField:
		_, ok := doc.Fields[r.Data]
		return ok
	case KindExpression:
		return matchExpression(r.Data, doc)
	case KindMatchAll:
		return true
	case KindCustom:
		return r.CustomMatch != nil && r.CustomMatch(doc)
	default:
		return false
	}
}

// matchExpression evaluates the trivial "field=value" equality grammar the
// rule engine supports for KindExpression; anything more elaborate belongs
// to the out-of-scope expression language the core merely consumes an AST
// interface for (spec.md §1's Non-goals).
func matchExpression(expr string, doc Document) bool {
	for i := 0; i < len(expr); i++ {
		if expr[i] == '=' {
			field, want := expr[:i], expr[i+1:]
			got, ok := doc.Fields[field]
			return ok && got == want
		}
	}
	return false
}

// Evaluate runs rules in declared order against doc, collecting the action
// of every matching rule. A Goto jumps evaluation to the named rule (which
// may be earlier or later); an unresolvable Goto target is treated as a
// fallthrough to the next rule. Abort stops evaluation immediately after
// recording its own action, reported via aborted=true.
func Evaluate(rules []SchemaRule, doc Document) (actions []MatchAction, aborted bool) {
	index := make(map[string]int, len(rules))
	for i, r := range rules {
		index[r.Name] = i
	}
	seen := make(map[int]bool, len(rules))
	i := 0
	for i < len(rules) {
		if seen[i] {
			// Guard against a Goto cycle: stop rather than loop forever.
			break
		}
		r := rules[i]
		if !r.matches(doc) {
			i++
			continue
		}
		seen[i] = true
		actions = append(actions, r.Action)
		switch r.Action.Kind {
		case ActionAbort:
			return actions, true
		case ActionGoto:
			if j, ok := index[r.Action.GotoRule]; ok {
				i = j
				continue
			}
		}
		i++
	}
	return actions, false
}

// Specs extracts the ActionIndex spec names from a completed Evaluate call,
// the set of indexes a document should be submitted to.
func Specs(actions []MatchAction) []string {
	var specs []string
	for _, a := range actions {
		if a.Kind == ActionIndex && a.Spec != "" {
			specs = append(specs, a.Spec)
		}
	}
	return specs
}

// MergedAttrs folds every SetAttrs/LoadAttrs action's Attrs into one map,
// later actions overriding earlier ones for the same key.
func MergedAttrs(actions []MatchAction) map[string]string {
	out := make(map[string]string)
	for _, a := range actions {
		if a.Kind != ActionSetAttrs && a.Kind != ActionLoadAttrs {
			continue
		}
		for k, v := range a.Attrs {
			out[k] = v
		}
	}
	return out
}
