package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnos-dev/qnos/internal/testutil"
	"github.com/qnos-dev/qnos/pkg/instr"
)

// Canonical instruction text parses into an instruction whose String
// renders the same text back.
func TestParseInstructionRoundTrip(t *testing.T) {
	lines := []string{
		"set R0 5",
		"set R1 -3",
		"store R0 @1[0]",
		"load R0 @1[R1]",
		"lea R0 @2",
		"undef @1[3]",
		"array R0 @1",
		"jmp 4",
		"bez R0 7",
		"bnz R0 7",
		"beq R0 R1 7",
		"bne R0 R1 7",
		"blt R0 R1 7",
		"bge R0 R1 7",
		"add R0 R1 R2",
		"sub R0 R1 R2",
		"addm R0 R1 R2 R3",
		"subm R0 R1 R2 R3",
		"init Q0",
		"x Q0",
		"y Q0",
		"z Q0",
		"h Q0",
		"s Q0",
		"k Q0",
		"t Q0",
		"cnot Q0 Q1",
		"cphase Q0 Q1",
		"rot_x Q0 1 2",
		"rot_y Q0 1 2",
		"rot_z Q0 3 1",
		"crot_x Q0 Q1 1 2",
		"crot_y Q0 Q1 1 2",
		"crot_z Q0 Q1 1 2",
		"meas Q0 M0",
		"qalloc Q0",
		"qfree Q0",
		"create_epr R0 R1 R2 R3 R4",
		"recv_epr R0 R1 R2 R4",
		"wait_all @3[0:10]",
		"wait_any @3[0:10]",
		"wait_single @3[R0]",
		"ret_reg M0",
		"ret_arr @3",
	}
	for _, line := range lines {
		in, err := ParseInstruction(line)
		require.NoError(t, err, line)
		assert.Equal(t, line, in.String())
	}
}

func TestParseInstructionErrors(t *testing.T) {
	lines := []string{
		"",
		"bogus R0",
		"set R0",
		"set R0 R1",
		"set X0 5",
		"store R0 @1",
		"lea R0 @1[0]",
		"jmp R0",
		"add R0 R1",
		"meas Q0",
		"wait_all @3[0]",
		"wait_single @3",
		"create_epr R0 R1 R2 R3",
		"ret_arr @3[0:2]",
	}
	for _, line := range lines {
		_, err := ParseInstruction(line)
		assert.Error(t, err, "%q should not parse", line)
	}
}

func TestLoad(t *testing.T) {
	path := testutil.TempFile(t, `app_id: 2
instructions:
  - set R0 10
  - set R1 0
  - add R1 R1 R0
  - ret_reg R1
`, ".yaml")

	sub, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.AppID)
	require.Len(t, sub.Instructions, 4)
	assert.Equal(t, instr.Set{Reg: testutil.Reg(t, "R0"), Value: 10}, sub.Instructions[0])
	assert.Equal(t, "ret_reg R1", sub.Instructions[3].String())
}

func TestLoadBadLine(t *testing.T) {
	path := testutil.TempFile(t, `app_id: 0
instructions:
  - set R0 10
  - frobnicate R0
`, ".yaml")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/prog.yaml")
	assert.Error(t, err)
}
