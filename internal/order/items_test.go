package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncludedAddon_AlwaysZero(t *testing.T) {
	a := NewIncludedAddon("sauce", "House sauce", 1)
	assert.Equal(t, Money(0), a.UnitPrice)

	// A stale price on an included addon is dropped at persistence.
	a.UnitPrice = 300
	assert.Equal(t, Money(0), a.Normalize().UnitPrice)
}

func TestExtraAddon_CategoryOverride(t *testing.T) {
	overrides := map[string]Money{"burgers": 150}

	withOverride := NewExtraAddon("cheese", "Cheese", 1, 200, "burgers", overrides)
	assert.Equal(t, Money(150), withOverride.UnitPrice)

	withDefault := NewExtraAddon("cheese", "Cheese", 1, 200, "salads", overrides)
	assert.Equal(t, Money(200), withDefault.UnitPrice)

	// Later override changes do not affect the addon already created.
	overrides["burgers"] = 999
	assert.Equal(t, Money(150), withOverride.UnitPrice)
}

func TestLineItem_Subtotal(t *testing.T) {
	li := LineItem{
		ProductID: "p-1",
		Name:      "Burger",
		UnitPrice: 1000,
		Quantity:  2,
		Addons: []Addon{
			NewExtraAddon("bacon", "Bacon", 1, 250, "", nil),
			{AddonID: "pickles", Kind: AddonIncluded, Name: "Pickles", UnitPrice: 100, Quantity: 1},
		},
	}
	assert.Equal(t, Money(2500), li.Subtotal())
}

func TestTotals(t *testing.T) {
	items := []LineItem{
		{ProductID: "chicken", Name: "Grilled Chicken", UnitPrice: 2500, Quantity: 2},
	}
	sub, total := Totals(items, 0)
	assert.Equal(t, Money(5000), sub)
	assert.Equal(t, Money(5000), total)

	_, total = Totals(items, 6000)
	assert.Equal(t, Money(0), total)
}

func TestNormalizeItems_DoesNotMutateInput(t *testing.T) {
	items := []LineItem{{
		ProductID: "p",
		Quantity:  1,
		Addons:    []Addon{{AddonID: "a", Kind: AddonIncluded, UnitPrice: 50, Quantity: 1}},
	}}
	out := NormalizeItems(items)
	assert.Equal(t, Money(0), out[0].Addons[0].UnitPrice)
	assert.Equal(t, Money(50), items[0].Addons[0].UnitPrice)
}

func TestSnapshot_Validate(t *testing.T) {
	s := Snapshot{
		ID:          "ORD-1",
		Type:        TypeDineIn,
		TableRef:    "T4",
		Status:      StatusPending,
		ValidatedAt: time.Now(),
		Items:       []LineItem{{ProductID: "p", Quantity: 1, UnitPrice: 100}},
	}
	require.NoError(t, s.Validate())

	bad := s
	bad.ID = ""
	bad.TableRef = ""
	bad.Items = []LineItem{{ProductID: "p", Quantity: 0}}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order id is required")
	assert.Contains(t, err.Error(), "requires a table")
	assert.Contains(t, err.Error(), "items[0]")
}

func TestNewPayment_Change(t *testing.T) {
	at := time.Now()
	p := NewPayment(MethodCash, 5000, 6000, at)
	assert.Equal(t, Money(1000), p.Change)

	p = NewPayment(MethodCard, 5000, 5000, at)
	assert.Equal(t, Money(0), p.Change)
}
