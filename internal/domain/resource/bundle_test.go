package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDelta_EmptyListIsIdentity(t *testing.T) {
	bundle := NewBundle(100, 10, 50)
	bundle.Inventory["seeds"] = 3

	result := ApplyDelta(bundle, nil)

	assert.True(t, result.Equal(bundle))
}

func TestApplyDelta_DoesNotMutateInput(t *testing.T) {
	bundle := NewBundle(100, 10, 50)
	bundle.Inventory["seeds"] = 3

	_ = ApplyDelta(bundle, []Effect{Currency(-40), Inventory("seeds", -1)})

	assert.Equal(t, 100, bundle.Currency)
	assert.Equal(t, 3, bundle.Inventory["seeds"])
}

func TestApplyDelta_Scalars(t *testing.T) {
	bundle := NewBundle(100, 10, 50)

	result := ApplyDelta(bundle, []Effect{
		Currency(-30),
		TimeUnits(5),
		Energy(20),
	})

	assert.Equal(t, 70, result.Currency)
	assert.Equal(t, 15, result.TimeUnits)
	assert.Equal(t, 70, result.Energy)
}

func TestApplyDelta_ClampsAtZero(t *testing.T) {
	bundle := NewBundle(25, 2, 10)
	bundle.Inventory["seeds"] = 1

	result := ApplyDelta(bundle, []Effect{
		Currency(-100),
		TimeUnits(-5),
		Energy(-50),
		Inventory("seeds", -4),
	})

	assert.Equal(t, 0, result.Currency)
	assert.Equal(t, 0, result.TimeUnits)
	assert.Equal(t, 0, result.Energy)
	assert.Equal(t, 0, result.Inventory["seeds"])
}

func TestApplyDelta_EnergyClampsAtMax(t *testing.T) {
	bundle := NewBundle(0, 0, 90)

	result := ApplyDelta(bundle, []Effect{Energy(25)})

	assert.Equal(t, MaxEnergy, result.Energy)
}

func TestApplyDelta_ZeroedInventoryKeyIsKept(t *testing.T) {
	bundle := NewBundle(0, 0, 0)
	bundle.Inventory["seeds"] = 2

	result := ApplyDelta(bundle, []Effect{Inventory("seeds", -2)})

	qty, exists := result.Inventory["seeds"]
	assert.True(t, exists, "zeroed key must stay in the map")
	assert.Equal(t, 0, qty)
}

func TestApplyDelta_RepeatedInventoryKeysAccumulate(t *testing.T) {
	bundle := NewBundle(0, 0, 0)

	result := ApplyDelta(bundle, []Effect{
		Inventory("seeds", 5),
		Inventory("seeds", 3),
	})

	assert.Equal(t, 8, result.Inventory["seeds"])
}

func TestApplyDelta_CreatesMissingInventoryKey(t *testing.T) {
	bundle := NewBundle(0, 0, 0)

	result := ApplyDelta(bundle, []Effect{Inventory("flour", 7)})

	assert.Equal(t, 7, result.Inventory["flour"])
}

func TestApplyDelta_ConcatEquivalenceWithoutClamp(t *testing.T) {
	bundle := NewBundle(100, 10, 50)
	bundle.Inventory["seeds"] = 4

	e1 := []Effect{Currency(-30), Inventory("seeds", -2)}
	e2 := []Effect{Currency(10), Energy(5), Inventory("seeds", 1)}

	sequential := ApplyDelta(ApplyDelta(bundle, e1), e2)
	concatenated := ApplyDelta(bundle, append(append([]Effect{}, e1...), e2...))

	assert.True(t, sequential.Equal(concatenated))
}

// Clamping breaks strict associativity: the floor loses information, so the
// sequential and concatenated applications legitimately diverge once the
// first list clamps. That divergence is the documented policy, and this test
// pins it down.
func TestApplyDelta_ClampBreaksConcatEquivalence(t *testing.T) {
	bundle := NewBundle(10, 0, 0)

	e1 := []Effect{Currency(-50)} // clamps to 0, losing 40
	e2 := []Effect{Currency(30)}

	sequential := ApplyDelta(ApplyDelta(bundle, e1), e2)
	concatenated := ApplyDelta(bundle, append(append([]Effect{}, e1...), e2...))

	// Sequential: 10 -> floor(0) -> 30. Concatenated nets to -20 and floors once.
	assert.Equal(t, 30, sequential.Currency)
	assert.Equal(t, 0, concatenated.Currency)
	assert.False(t, sequential.Equal(concatenated))
}

func TestApplyDelta_OrderIrrelevantWithinOneCall(t *testing.T) {
	bundle := NewBundle(10, 0, 0)

	a := ApplyDelta(bundle, []Effect{Currency(-50), Currency(30)})
	b := ApplyDelta(bundle, []Effect{Currency(30), Currency(-50)})

	assert.True(t, a.Equal(b), "deltas net per call, so ordering inside a call does not matter")
}

func TestWouldClamp(t *testing.T) {
	bundle := NewBundle(10, 5, 95)

	assert.False(t, WouldClamp(bundle, []Effect{Currency(-10)}))
	assert.True(t, WouldClamp(bundle, []Effect{Currency(-11)}))
	assert.True(t, WouldClamp(bundle, []Effect{Energy(10)}))
	assert.True(t, WouldClamp(bundle, []Effect{Inventory("seeds", -1)}))
	assert.False(t, WouldClamp(bundle, []Effect{Inventory("seeds", 1)}))
}

func TestEffect_IsValid(t *testing.T) {
	assert.True(t, Currency(5).IsValid())
	assert.True(t, Inventory("seeds", 1).IsValid())
	assert.False(t, Effect{Kind: KindInventory, Amount: 1}.IsValid())
	assert.False(t, Effect{Kind: Kind("mana"), Amount: 1}.IsValid())
	assert.False(t, Effect{Kind: KindCurrency, ItemID: "seeds", Amount: 1}.IsValid())
}
