package decision

import (
	"testing"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionID = shared.SessionID("6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d001")

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	catalog, err := LoadCatalog(defaultCatalogYAML)
	require.NoError(t, err)
	return NewResolver(catalog)
}

func TestDefaultCatalog_Loads(t *testing.T) {
	catalog := DefaultCatalog()
	assert.GreaterOrEqual(t, catalog.Len(), 6)

	rule, ok := catalog.Rule("business_register")
	require.True(t, ok)
	assert.Equal(t, "business_register", rule.Action)
	assert.NotNil(t, rule.Schema)
}

func TestResolveChoice_UnknownChoice(t *testing.T) {
	resolver := newTestResolver(t)

	_, err := resolver.ResolveChoice("open_casino", nil, testSessionID, Profile{})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestResolveChoice_InvalidPayload(t *testing.T) {
	resolver := newTestResolver(t)

	// businessName is required by the rule's payload contract.
	_, err := resolver.ResolveChoice("business_register", map[string]interface{}{}, testSessionID, Profile{})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestResolveChoice_BusinessRegister(t *testing.T) {
	resolver := newTestResolver(t)

	res, err := resolver.ResolveChoice("business_register",
		map[string]interface{}{"businessName": "Acme"}, testSessionID, Profile{})

	require.NoError(t, err)
	assert.Equal(t, ActionBusinessRegister, res.Action)
	assert.Equal(t, "Acme", res.BusinessName)
	assert.Empty(t, res.Delayed)

	// Registration costs time and energy but never touches currency:
	// the business cash balance stays untouched at registration time.
	for _, effect := range res.Immediate {
		assert.NotEqual(t, resource.KindCurrency, effect.Kind)
	}
}

func TestResolveChoice_VariantSelection(t *testing.T) {
	resolver := newTestResolver(t)

	small, err := resolver.ResolveChoice("buy_inventory",
		map[string]interface{}{"bulk": "small"}, testSessionID, Profile{})
	require.NoError(t, err)

	large, err := resolver.ResolveChoice("buy_inventory",
		map[string]interface{}{"bulk": "large"}, testSessionID, Profile{})
	require.NoError(t, err)

	require.Len(t, small.Delayed, 1)
	require.Len(t, large.Delayed, 1)
	assert.Equal(t, "delivery_small", small.Delayed[0].RuleID)
	assert.Equal(t, "delivery_large", large.Delayed[0].RuleID)
	assert.Equal(t, 60*time.Minute, small.Delayed[0].Delay)
	assert.Equal(t, 180*time.Minute, large.Delayed[0].Delay)
}

func TestResolveChoice_UnknownVariant(t *testing.T) {
	resolver := newTestResolver(t)

	_, err := resolver.ResolveChoice("buy_inventory",
		map[string]interface{}{"bulk": "gigantic"}, testSessionID, Profile{})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestResolveChoice_DelayedSpec(t *testing.T) {
	resolver := newTestResolver(t)

	res, err := resolver.ResolveChoice("take_loan", nil, testSessionID, Profile{})
	require.NoError(t, err)

	require.Len(t, res.Immediate, 1)
	assert.Equal(t, resource.Currency(500), res.Immediate[0])

	require.Len(t, res.Delayed, 1)
	assert.Equal(t, "loan_repayment", res.Delayed[0].RuleID)
	assert.Equal(t, 24*time.Hour, res.Delayed[0].Delay)
	assert.Equal(t, []resource.Effect{resource.Currency(-550)}, res.Delayed[0].Effects)
}

func TestResolveChoice_FastTrackSkill(t *testing.T) {
	resolver := newTestResolver(t)

	slow, err := resolver.ResolveChoice("run_promotion", nil, testSessionID,
		Profile{Skills: map[string]int{"marketing": 2}})
	require.NoError(t, err)

	fast, err := resolver.ResolveChoice("run_promotion", nil, testSessionID,
		Profile{Skills: map[string]int{"marketing": 3}})
	require.NoError(t, err)

	require.Len(t, slow.Delayed, 1)
	require.Len(t, fast.Delayed, 1)
	assert.Equal(t, 120*time.Minute, slow.Delayed[0].Delay)
	assert.Equal(t, 60*time.Minute, fast.Delayed[0].Delay)
}

func TestLoadCatalog_RejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty", "version: 1\nrules: []\n"},
		{"bad id", "rules:\n  - id: \"Bad Id\"\n"},
		{"duplicate id", "rules:\n  - id: rest_day\n  - id: rest_day\n"},
		{"zero delay", `
rules:
  - id: broken
    delayed:
      - rule_id: later
        delay_minutes: 0
        effects:
          - kind: currency
            amount: 1
`},
		{"bad effect kind", `
rules:
  - id: broken
    immediate:
      - kind: mana
        amount: 1
`},
		{"inventory without item", `
rules:
  - id: broken
    immediate:
      - kind: inventory
        amount: 1
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCatalog([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}
