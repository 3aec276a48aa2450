package checkout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/shreesanatan/pujapath-backend/pkg/errors"
)

func TestSanitizeItemsClampsAndTruncates(t *testing.T) {
	items, subtotal, err := SanitizeItems([]ItemInput{
		{Name: "  " + strings.Repeat("n", 250), Price: "10", Quantity: 0},
		{Name: "Kumkum", Price: "5.50", Quantity: 500},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Len(t, items[0].Name, 200)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "10.00", items[0].Price)
	assert.Equal(t, 100, items[1].Quantity)

	// 10*1 + 5.50*100
	assert.Equal(t, "560", subtotal.String())
}

func TestSanitizeItemsRejectsBadInput(t *testing.T) {
	_, _, err := SanitizeItems(nil)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	tooMany := make([]ItemInput, 51)
	for i := range tooMany {
		tooMany[i] = ItemInput{Name: "x", Price: "10", Quantity: 1}
	}
	_, _, err = SanitizeItems(tooMany)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, _, err = SanitizeItems([]ItemInput{{Name: "x", Price: "free", Quantity: 1}})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, _, err = SanitizeItems([]ItemInput{{Name: "x", Price: "-5", Quantity: 1}})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, _, err = SanitizeItems([]ItemInput{{Name: "   ", Price: "5", Quantity: 1}})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSanitizeAddress(t *testing.T) {
	assert.Equal(t, "12 Temple Street", SanitizeAddress("  12 Temple Street  "))
	assert.Len(t, SanitizeAddress(strings.Repeat("a", 700)), 500)
}
