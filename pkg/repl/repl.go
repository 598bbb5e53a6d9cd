// Package repl provides an interactive shell for a node: NetQASM
// instructions are entered one per line and executed immediately
// against a live executor, with commands to inspect application memory
// between instructions.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/qnos-dev/qnos/pkg/executor"
	"github.com/qnos-dev/qnos/pkg/instr"
	"github.com/qnos-dev/qnos/pkg/operand"
	"github.com/qnos-dev/qnos/pkg/program"
	"github.com/qnos-dev/qnos/pkg/sharedmem"
)

const prompt = "qnos> "

// REPL provides an interactive Read-Eval-Print Loop over one
// application's memory on a node.
type REPL struct {
	exec    *executor.Executor
	appID   int
	history []string
}

// New creates a REPL driving the given executor. The application must
// already be registered.
func New(exec *executor.Executor, appID int) *REPL {
	return &REPL{exec: exec, appID: appID}
}

// Start runs the REPL loop until quit or end of input.
func (r *REPL) Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "qnos REPL - NetQASM instruction shell (node %s, app %d)\n",
		r.exec.Name(), r.appID)
	fmt.Fprintln(out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(out)

	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		handled, quit := r.handleCommand(line, out)
		if quit {
			return
		}
		if handled {
			continue
		}

		r.eval(line, out)
	}
}

func (r *REPL) handleCommand(line string, out io.Writer) (handled, quit bool) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true, false
	}

	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		return true, true

	case "help", "h", "?":
		r.printHelp(out)
		return true, false

	case "regs":
		r.listRegisters(out)
		return true, false

	case "qubits":
		r.listQubits(out)
		return true, false

	case "shared":
		r.listShared(out)
		return true, false

	case "history":
		for i, cmd := range r.history {
			fmt.Fprintf(out, "%3d: %s\n", i+1, cmd)
		}
		return true, false
	}

	return false, false
}

// eval parses one instruction and executes it as a single-instruction
// subroutine. Register and array state persists across lines.
func (r *REPL) eval(input string, out io.Writer) {
	r.history = append(r.history, input)

	in, err := program.ParseInstruction(input)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	err = r.exec.ConsumeSubroutine(&instr.Subroutine{
		AppID:        r.appID,
		Instructions: []instr.Instruction{in},
	})
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	// Measurements report their outcome right away.
	if m, ok := in.(instr.Meas); ok {
		if v, defined, err := r.exec.Memory(r.appID).Registers.Get(m.Out); err == nil && defined {
			fmt.Fprintf(out, "=> %s = %d\n", m.Out, v)
		}
	}
}

func (r *REPL) listRegisters(out io.Writer) {
	mem := r.exec.Memory(r.appID)
	found := false
	for name := operand.BankR; name <= operand.BankM; name++ {
		for i := 0; i < operand.BankSize; i++ {
			reg := operand.Register{Name: name, Index: i}
			v, defined, err := mem.Registers.Get(reg)
			if err != nil || !defined {
				continue
			}
			fmt.Fprintf(out, "  %s = %d\n", reg, v)
			found = true
		}
	}
	if !found {
		fmt.Fprintln(out, "No registers defined")
	}
}

func (r *REPL) listQubits(out io.Writer) {
	mem := r.exec.Memory(r.appID)
	found := false
	for virtual := 0; virtual < mem.NumQubits(); virtual++ {
		if !mem.HasVirtual(virtual) {
			continue
		}
		physical, err := mem.PhysicalID(virtual)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "  virtual %d -> physical %d\n", virtual, physical)
		found = true
	}
	if !found {
		fmt.Fprintln(out, "No qubits allocated")
	}
}

func (r *REPL) listShared(out io.Writer) {
	shared, ok := r.exec.SharedMemory(r.appID).(*sharedmem.InMemory)
	if !ok {
		fmt.Fprintln(out, "No shared memory")
		return
	}
	registers := shared.Registers()
	arrays := shared.Arrays()
	if len(registers) == 0 && len(arrays) == 0 {
		fmt.Fprintln(out, "Nothing returned yet")
		return
	}
	for reg, v := range registers {
		fmt.Fprintf(out, "  %s = %d\n", reg, v)
	}
	for addr, cells := range arrays {
		fmt.Fprintf(out, "  %s =", addr)
		for _, c := range cells {
			if c.Defined {
				fmt.Fprintf(out, " %d", c.Value)
			} else {
				fmt.Fprint(out, " -")
			}
		}
		fmt.Fprintln(out)
	}
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
qnos REPL Commands:
  help, h, ?      Show this help message
  quit, exit, q   Exit the REPL
  regs            List defined registers
  qubits          List allocated qubits
  shared          Show values returned to shared memory
  history         Show command history

Instruction Examples:
  set R0 5
  set Q0 0
  qalloc Q0
  init Q0
  h Q0
  meas Q0 M0
  ret_reg M0

Any NetQASM instruction in text form runs immediately; registers,
arrays and qubits persist between lines.
`
	fmt.Fprint(out, help)
}
