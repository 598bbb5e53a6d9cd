package operand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Register parsing =====

func TestParseRegister(t *testing.T) {
	r, err := ParseRegister("R0")
	require.NoError(t, err)
	assert.Equal(t, Register{Name: BankR, Index: 0}, r)

	r, err = ParseRegister("M15")
	require.NoError(t, err)
	assert.Equal(t, Register{Name: BankM, Index: 15}, r)

	r, err = ParseRegister("C7")
	require.NoError(t, err)
	assert.Equal(t, Register{Name: BankC, Index: 7}, r)

	r, err = ParseRegister("Q3")
	require.NoError(t, err)
	assert.Equal(t, Register{Name: BankQ, Index: 3}, r)
}

func TestParseRegisterInvalid(t *testing.T) {
	for _, s := range []string{"", "R", "R16", "X0", "R-1", "Rx", "15"} {
		_, err := ParseRegister(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestRegisterString(t *testing.T) {
	assert.Equal(t, "R0", Register{Name: BankR, Index: 0}.String())
	assert.Equal(t, "M15", Register{Name: BankM, Index: 15}.String())
}

func TestRegisterValidate(t *testing.T) {
	assert.NoError(t, Register{Name: BankR, Index: 15}.Validate())
	assert.Error(t, Register{Name: BankR, Index: 16}.Validate())
	assert.Error(t, Register{Name: RegisterName(4), Index: 0}.Validate())
}

// ===== Address parsing =====

func TestParseAddressPlain(t *testing.T) {
	op, err := ParseAddress("@4")
	require.NoError(t, err)
	addr, ok := op.(Address)
	require.True(t, ok)
	assert.Equal(t, Address(4), addr)
	assert.Equal(t, "@4", addr.String())
}

func TestParseAddressEntry(t *testing.T) {
	op, err := ParseAddress("@2[3]")
	require.NoError(t, err)
	entry, ok := op.(ArrayEntry)
	require.True(t, ok)
	assert.Equal(t, Address(2), entry.Address)
	assert.Equal(t, Immediate(3), entry.Index)

	op, err = ParseAddress("@2[R0]")
	require.NoError(t, err)
	entry, ok = op.(ArrayEntry)
	require.True(t, ok)
	assert.Equal(t, Register{Name: BankR, Index: 0}, entry.Index)
	assert.Equal(t, "@2[R0]", entry.String())
}

func TestParseAddressSlice(t *testing.T) {
	op, err := ParseAddress("@1[0:4]")
	require.NoError(t, err)
	slice, ok := op.(ArraySlice)
	require.True(t, ok)
	assert.Equal(t, Address(1), slice.Address)
	assert.Equal(t, Immediate(0), slice.Start)
	assert.Equal(t, Immediate(4), slice.Stop)

	op, err = ParseAddress("@1[R0:R1]")
	require.NoError(t, err)
	slice, ok = op.(ArraySlice)
	require.True(t, ok)
	assert.Equal(t, Register{Name: BankR, Index: 0}, slice.Start)
	assert.Equal(t, Register{Name: BankR, Index: 1}, slice.Stop)
}

func TestParseAddressInvalid(t *testing.T) {
	for _, s := range []string{"", "4", "@", "@x", "@1[", "@1[]", "@1[0:", "@1[0:1:2]", "@1[X9]"} {
		_, err := ParseAddress(s)
		assert.Error(t, err, "input %q", s)
	}
}
