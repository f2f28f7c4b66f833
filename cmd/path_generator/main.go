// Command path_generator enumerates distinct execution paths, dumping
// each exited state's filesystem to a zero-padded, numbered
// subdirectory. Grounded on
// original_source/tools/gen_path_demo.cpp/naaz_path_generator.cpp.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/borzacchiello/naazgo/internal/bootstrap"
	"github.com/borzacchiello/naazgo/internal/sched"
	"github.com/borzacchiello/naazgo/internal/state"
)

func main() {
	output := flag.String("output", "/tmp/output", "output directory")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [--output <dir>] <program> [args...]\n", os.Args[0])
		os.Exit(1)
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "path_generator: output directory: %v\n", err)
		os.Exit(1)
	}

	programArgs := flag.Args()
	s, I, err := bootstrap.EntryState(programArgs[0], programArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "path_generator: %v\n", err)
		os.Exit(1)
	}

	nTestcase := 0
	scheduler := sched.NewRandLIFO()
	callback := func(st *state.State) bool {
		if !st.Exited {
			return true
		}
		dir := fmt.Sprintf("%s/%06d", *output, nTestcase)
		nTestcase++
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "path_generator: %v\n", err)
			return false
		}
		if err := st.DumpFS(func(name string, data []byte) error {
			return os.WriteFile(dir+"/"+name, data, 0o644)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "path_generator: dump: %v\n", err)
		}
		return false
	}

	if err := sched.GenPaths(I, scheduler, s, callback); err != nil {
		fmt.Fprintf(os.Stderr, "path_generator: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("generated %d path(s)\n", nTestcase)
}
