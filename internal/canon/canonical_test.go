package canon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smvora4u/restaurant-management/internal/lineitem"
	"github.com/smvora4u/restaurant-management/internal/status"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"strings", []string{"a", "b"}, `["a","b"]`},
		{"sorted keys", map[string]any{"zebra": 1, "alpha": 2, "beta": 3}, `{"alpha":2,"beta":3,"zebra":1}`},
		{"nested", map[string]any{"z": map[string]any{"b": 1, "a": 2}, "a": 3}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalRejects(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(1.5)
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"x": []any{nil}})
	assert.Error(t, err)

	_, err = Marshal(struct{}{})
	assert.Error(t, err)
}

func TestMarshalNFC(t *testing.T) {
	composed, err := Marshal("caf\u00e9")
	require.NoError(t, err)
	decomposed, err := Marshal("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalLineSeparators(t *testing.T) {
	got, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// A literal backslash followed by "u2028" text stays escaped.
	got, err = Marshal(`x\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(got))
}

func TestCompareUTF16(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16 code units (the emoji encodes as a 0xD83D surrogate).
	assert.Equal(t, 1, compareUTF16("\uFF61", "\U0001F600"))
	assert.Equal(t, -1, compareUTF16("a", "ab"))
	assert.Equal(t, 0, compareUTF16("x", "x"))
}

func TestItemsFingerprint(t *testing.T) {
	price := decimal.RequireFromString("4.5")
	a := []lineitem.Item{{MenuItemID: "tea", Quantity: 2, UnitPrice: price, Status: status.Ready, SpecialInstructions: " caf\u00e9 "}}
	b := []lineitem.Item{{MenuItemID: "tea", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50"), Status: status.Ready, SpecialInstructions: "cafe\u0301"}}

	fa, err := ItemsFingerprint(a)
	require.NoError(t, err)
	assert.Len(t, fa, 64)
	assert.Equal(t, fa, MustItemsFingerprint(b))

	b[0].Quantity = 3
	assert.NotEqual(t, fa, MustItemsFingerprint(b))
}

func TestItemsValue(t *testing.T) {
	v := ItemsValue([]lineitem.Item{{MenuItemID: "tea", Quantity: 1, UnitPrice: decimal.RequireFromString("3"), Status: status.Pending}})
	data, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `[{"menuItemId":"tea","quantity":1,"status":"pending","unitPrice":"3"}]`, string(data))
}

func TestItemsFingerprint_ExactPrice(t *testing.T) {
	priced := func(p string) []lineitem.Item {
		return []lineitem.Item{{MenuItemID: "tea", Quantity: 1, UnitPrice: decimal.RequireFromString(p), Status: status.Pending}}
	}

	assert.NotEqual(t, MustItemsFingerprint(priced("1.00")), MustItemsFingerprint(priced("1.005")))
	assert.Equal(t, MustItemsFingerprint(priced("12.50")), MustItemsFingerprint(priced("12.5")))
}

func TestPushID(t *testing.T) {
	id1, err := PushID("order-1", status.Ready, 7)
	require.NoError(t, err)
	id2, err := PushID("order-1", status.Ready, 7)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := PushID("order-1", status.Ready, 8)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}
