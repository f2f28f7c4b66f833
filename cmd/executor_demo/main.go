// Command executor_demo is a single-target convenience wrapper around
// the exploration scheduler: reach one address in one binary, dump the
// proof to /tmp/output. Grounded on
// original_source/tools/executor_demo.cpp.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/borzacchiello/naazgo/internal/bootstrap"
	"github.com/borzacchiello/naazgo/internal/sched"
	"github.com/borzacchiello/naazgo/internal/state"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <find-hex> <binary> [args...]\n", os.Args[0])
		os.Exit(1)
	}

	findStr := strings.TrimPrefix(os.Args[1], "0x")
	findAddr, err := strconv.ParseUint(findStr, 16, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "executor_demo: invalid find address %q: %v\n", os.Args[1], err)
		os.Exit(2)
	}

	programArgs := os.Args[2:]
	s, I, err := bootstrap.EntryState(programArgs[0], programArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "executor_demo: %v\n", err)
		os.Exit(1)
	}

	isFind := func(st *state.State) bool { return st.PC() == findAddr }
	scheduler := sched.NewRandLIFO()
	found, _, err := sched.Explore(I, scheduler, s, isFind, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "executor_demo: %v\n", err)
		os.Exit(1)
	}

	const outDir = "/tmp/output"
	if found != nil {
		fmt.Printf("state found! dumping proof to %s\n", outDir)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "executor_demo: %v\n", err)
			os.Exit(1)
		}
		if err := found.DumpFS(func(name string, data []byte) error {
			return os.WriteFile(outDir+"/"+name, data, 0o644)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "executor_demo: dump: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Println("state not found")
	}
}
