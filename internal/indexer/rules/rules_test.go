package rules

import "testing"

func TestEvaluatePrefixRuleIndexes(t *testing.T) {
	rs := []SchemaRule{
		{Name: "products", Kind: KindPrefix, Data: "product:", Action: MatchAction{Kind: ActionIndex, Spec: "products-idx"}},
		{Name: "catchall", Kind: KindMatchAll, Action: MatchAction{Kind: ActionIndex, Spec: "default-idx"}},
	}
	actions, aborted := Evaluate(rs, Document{Key: "product:42"})
	if aborted {
		t.Fatal("unexpected abort")
	}
	specs := Specs(actions)
	if len(specs) != 2 || specs[0] != "products-idx" || specs[1] != "default-idx" {
		t.Fatalf("specs = %v, want [products-idx default-idx]", specs)
	}
}

func TestEvaluateAbortStopsProcessing(t *testing.T) {
	rs := []SchemaRule{
		{Name: "skip-deleted", Kind: KindHasField, Data: "deleted", Action: MatchAction{Kind: ActionAbort}},
		{Name: "catchall", Kind: KindMatchAll, Action: MatchAction{Kind: ActionIndex, Spec: "default-idx"}},
	}
	actions, aborted := Evaluate(rs, Document{Key: "doc1", Fields: map[string]string{"deleted": "1"}})
	if !aborted {
		t.Fatal("expected abort")
	}
	if specs := Specs(actions); len(specs) != 0 {
		t.Fatalf("specs = %v, want none after abort", specs)
	}
}

func TestEvaluateGotoJumpsToNamedRule(t *testing.T) {
	rs := []SchemaRule{
		{Name: "start", Kind: KindMatchAll, Action: MatchAction{Kind: ActionGoto, GotoRule: "final"}},
		{Name: "skipped", Kind: KindMatchAll, Action: MatchAction{Kind: ActionIndex, Spec: "skipped-idx"}},
		{Name: "final", Kind: KindMatchAll, Action: MatchAction{Kind: ActionIndex, Spec: "final-idx"}},
	}
	actions, _ := Evaluate(rs, Document{Key: "doc1"})
	specs := Specs(actions)
	if len(specs) != 1 || specs[0] != "final-idx" {
		t.Fatalf("specs = %v, want [final-idx]", specs)
	}
}

func TestEvaluateExpressionAndMergedAttrs(t *testing.T) {
	rs := []SchemaRule{
		{Name: "active", Kind: KindExpression, Data: "status=active", Action: MatchAction{Kind: ActionSetAttrs, Attrs: map[string]string{"tier": "hot"}}},
		{Name: "catchall", Kind: KindMatchAll, Action: MatchAction{Kind: ActionIndex, Spec: "idx"}},
	}
	doc := Document{Key: "doc1", Fields: map[string]string{"status": "active"}}
	actions, _ := Evaluate(rs, doc)
	attrs := MergedAttrs(actions)
	if attrs["tier"] != "hot" {
		t.Fatalf("attrs = %v, want tier=hot", attrs)
	}
}
