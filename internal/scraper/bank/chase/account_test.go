package chase

import (
	"testing"

	"github.com/grez-lucas/chase-scraper/internal/scraper/bank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_WriteOnce(t *testing.T) {
	attrs := newAttributes(map[string]Value{
		"status": TextValue("Open"),
		"fee":    {},
	})

	err := attrs.Set("status", TextValue("Closed"))
	assert.ErrorIs(t, err, bank.ErrUsage)
	assert.Equal(t, "Open", attrs.Get("status").Text)

	// Present but absent-valued keys are populated too.
	assert.ErrorIs(t, attrs.Set("fee", TextValue("1")), bank.ErrUsage)

	require.NoError(t, attrs.Set("nickname", TextValue("bills")))
	assert.ErrorIs(t, attrs.Set("nickname", TextValue("rent")), bank.ErrUsage)

	assert.Equal(t, []string{"fee", "nickname", "status"}, attrs.Keys())
	assert.Equal(t, 3, attrs.Len())

	_, ok := attrs.Lookup("missing")
	assert.False(t, ok)
	assert.True(t, attrs.Get("missing").IsAbsent())
}

func TestAttributes_CopiesInput(t *testing.T) {
	src := map[string]Value{"status": TextValue("Open")}
	attrs := newAttributes(src)

	src["status"] = TextValue("Closed")

	assert.Equal(t, "Open", attrs.Get("status").Text)
}

func TestAccount_Variants(t *testing.T) {
	credit := &Account{ID: "C1", Name: "CHASE FREEDOM", Kind: KindCredit, Attributes: newAttributes(nil)}
	debit := &Account{ID: "D1", Name: "TOTAL CHECKING", Kind: KindDebit, Attributes: newAttributes(nil)}

	c, ok := credit.AsCredit()
	require.True(t, ok)
	assert.Equal(t, "C1", c.ID)
	_, ok = credit.AsDebit()
	assert.False(t, ok)

	d, ok := debit.AsDebit()
	require.True(t, ok)
	assert.Equal(t, "D1", d.ID)
	_, ok = debit.AsCredit()
	assert.False(t, ok)

	var missing *Account
	_, ok = missing.AsDebit()
	assert.False(t, ok)

	assert.Equal(t, "CHASE FREEDOM", credit.String())
	assert.Equal(t, "credit", credit.Kind.String())
	assert.Equal(t, "debit", debit.Kind.String())
}

func TestAccount_AttrURLMissing(t *testing.T) {
	a := &Account{Name: "MY SAVINGS", Attributes: newAttributes(map[string]Value{AttrPaymentURL: {}})}

	_, err := a.attrURL(AttrPaymentURL)
	assert.ErrorIs(t, err, bank.ErrStructuralMismatch)
	_, err = a.attrURL(AttrTransferFromURL)
	assert.ErrorIs(t, err, bank.ErrStructuralMismatch)
}
