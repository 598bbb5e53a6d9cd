// Package main provides the CLI entry point for qnos, a NetQASM
// execution runtime for quantum-network node controllers.
//
// Usage:
//
//	qnos run program.yaml          # Execute a program on a local node
//	qnos run -v program.yaml       # Execute with debug logging
//	qnos repl                      # Interactive instruction shell
//	qnos trace out.csv             # Inspect a recorded instruction trace
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"go.uber.org/zap"

	"github.com/qnos-dev/qnos/pkg/executor"
	"github.com/qnos-dev/qnos/pkg/instrlog"
	"github.com/qnos-dev/qnos/pkg/nodeos"
	"github.com/qnos-dev/qnos/pkg/operand"
	"github.com/qnos-dev/qnos/pkg/program"
	"github.com/qnos-dev/qnos/pkg/repl"
	"github.com/qnos-dev/qnos/pkg/sharedmem"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	cmd := os.Args[1]

	switch cmd {
	case "run":
		return runCommand(os.Args[2:])
	case "repl":
		return replCommand(os.Args[2:])
	case "trace":
		return traceCommand(os.Args[2:])
	case "version":
		fmt.Printf("qnos version %s\n", version)
		if commit != "none" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if date != "unknown" {
			fmt.Printf("  built:  %s\n", date)
		}
		return nil
	case "help", "-h", "--help":
		return printUsage()
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("v", false, "debug logging")
	qubits := fs.Int("qubits", 8, "number of physical qubits on the node")
	name := fs.String("name", "node", "node name")
	tracePath := fs.String("trace", "", "write instruction trace to CSV file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: qnos run <program.yaml>")
	}

	sub, err := program.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	log := zap.NewNop()
	if *verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer log.Sync()
	}

	exec := executor.New(*name, 0, *qubits)
	exec.SetLogger(log)

	var trace *instrlog.Logger
	if *tracePath != "" {
		trace = instrlog.NewLogger()
		exec.SetTrace(trace)
	}

	ctrl := nodeos.NewController(exec, log)
	defer ctrl.Close()

	if err := ctrl.Execute(nodeos.InitNewApp{AppID: sub.AppID, MaxQubits: *qubits}); err != nil {
		return err
	}
	if err := ctrl.Execute(nodeos.RunSubroutine{Subroutine: sub}); err != nil {
		return err
	}

	printResults(exec, sub.AppID)

	if err := ctrl.Execute(nodeos.StopApp{AppID: sub.AppID}); err != nil {
		return err
	}

	if trace != nil {
		if err := writeTrace(trace, *tracePath); err != nil {
			return err
		}
		fmt.Printf("Trace: %s (%d instructions)\n", *tracePath, trace.Len())
	}

	return nil
}

// printResults dumps what the program returned into shared memory.
func printResults(exec *executor.Executor, appID int) {
	shared, ok := exec.SharedMemory(appID).(*sharedmem.InMemory)
	if !ok {
		return
	}

	registers := shared.Registers()
	regs := make([]operand.Register, 0, len(registers))
	for r := range registers {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Name != regs[j].Name {
			return regs[i].Name < regs[j].Name
		}
		return regs[i].Index < regs[j].Index
	})
	for _, r := range regs {
		fmt.Printf("%s = %d\n", r, registers[r])
	}

	arrays := shared.Arrays()
	for _, addr := range sortedKeys(arrays) {
		fmt.Printf("%s =", addr)
		for _, c := range arrays[addr] {
			if c.Defined {
				fmt.Printf(" %d", c.Value)
			} else {
				fmt.Printf(" -")
			}
		}
		fmt.Println()
	}
}

func writeTrace(trace *instrlog.Logger, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if filepath.Ext(path) == ".yaml" || filepath.Ext(path) == ".yml" {
		return trace.ExportYAML(f)
	}
	return trace.ExportCSV(context.Background(), f)
}

func replCommand(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	verbose := fs.Bool("v", false, "debug logging")
	qubits := fs.Int("qubits", 8, "number of physical qubits on the node")
	name := fs.String("name", "node", "node name")

	if err := fs.Parse(args); err != nil {
		return err
	}

	log := zap.NewNop()
	if *verbose {
		var err error
		log, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer log.Sync()
	}

	exec := executor.New(*name, 0, *qubits)
	exec.SetLogger(log)
	if err := exec.InitNewApplication(0, *qubits); err != nil {
		return err
	}

	repl.New(exec, 0).Start(os.Stdin, os.Stdout)
	return nil
}

func traceCommand(args []string) error {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: qnos trace <trace.csv|trace.parquet>")
	}

	path := fs.Arg(0)
	var (
		frame *dataframe.DataFrame
		err   error
	)
	if filepath.Ext(path) == ".parquet" {
		frame, err = instrlog.LoadParquet(path)
	} else {
		frame, err = instrlog.LoadCSV(path)
	}
	if err != nil {
		return err
	}
	fmt.Println(frame.Table())
	return nil
}

func printUsage() error {
	fmt.Println(`qnos - NetQASM execution runtime for quantum-network node controllers

Usage:
  qnos <command> [arguments]

Commands:
  run <program.yaml>    Execute a program on a local node
  repl                  Interactive instruction shell
  trace <file>          Print a recorded instruction trace (CSV or Parquet)
  version               Print version information
  help                  Show this help message

Run Options:
  -v                    Debug logging
  -qubits <n>           Number of physical qubits on the node (default 8)
  -name <name>          Node name (default "node")
  -trace <file>         Write instruction trace (.csv or .yaml)

Examples:
  qnos run program.yaml
  qnos run -v -qubits 4 program.yaml
  qnos run -trace trace.csv program.yaml
  qnos trace trace.csv`)
	return nil
}

// sortedKeys is a helper for stable result printing.
func sortedKeys[K interface{ ~int | ~uint32 }, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
