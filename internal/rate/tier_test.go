package rate

import "testing"

func TestTierForPlan(t *testing.T) {
	t.Parallel()

	cases := map[string]Tier{
		"plan_free":       TierFree,
		"plan_pro":        TierPro,
		"PLAN_ENTERPRISE": TierEnterprise,
		"":                TierFree,
		"plan_gold":       TierFree,
	}
	for plan, want := range cases {
		if got := TierForPlan(plan); got != want {
			t.Errorf("TierForPlan(%q) = %s, want %s", plan, got, want)
		}
	}
}

func TestTierLimits(t *testing.T) {
	t.Parallel()

	if l := TierFree.Limits(); l != (Limits{10, 100, 500}) {
		t.Errorf("free = %+v", l)
	}
	if l := TierPro.Limits(); l != (Limits{60, 1000, 10000}) {
		t.Errorf("pro = %+v", l)
	}
	if l := TierEnterprise.Limits(); l != (Limits{300, 10000, 100000}) {
		t.Errorf("enterprise = %+v", l)
	}
	if l := Tier(42).Limits(); l != TierFree.Limits() {
		t.Errorf("out of range tier should be free, got %+v", l)
	}
}

func TestResolveOverrideReplacesTier(t *testing.T) {
	t.Parallel()

	o := &Limits{PerMinute: 1}
	got := Resolve("plan_enterprise", o)
	if got != (Limits{PerMinute: 1}) {
		t.Fatalf("override must replace entirely, got %+v", got)
	}
	if got := Resolve("plan_pro", nil); got != TierPro.Limits() {
		t.Fatalf("nil override = %+v", got)
	}
}
