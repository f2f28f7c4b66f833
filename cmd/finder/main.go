// Command finder drives the engine to reach one of a set of target
// addresses while avoiding another set, dumping the reaching state's
// filesystem to an output directory. Grounded on
// original_source/tools/naaz_finder.cpp.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/borzacchiello/naazgo/internal/bootstrap"
	"github.com/borzacchiello/naazgo/internal/sched"
	"github.com/borzacchiello/naazgo/internal/state"
)

func parseAddrList(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "0x")
		v, err := strconv.ParseUint(part, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func main() {
	find := flag.String("find", "", "addresses to reach (comma-separated, hex)")
	avoid := flag.String("avoid", "", "addresses to avoid (comma-separated, hex)")
	output := flag.String("output", "/tmp/output", "output directory")
	flag.Parse()

	if *find == "" || flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s --find <hex,...> [--avoid <hex,...>] [--output <dir>] <program> [args...]\n", os.Args[0])
		os.Exit(1)
	}

	findAddrs, err := parseAddrList(*find)
	if err != nil {
		fmt.Fprintf(os.Stderr, "finder: %v\n", err)
		os.Exit(2)
	}
	avoidAddrs, err := parseAddrList(*avoid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "finder: %v\n", err)
		os.Exit(3)
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "finder: output directory: %v\n", err)
		os.Exit(1)
	}

	programArgs := flag.Args()
	s, I, err := bootstrap.EntryState(programArgs[0], programArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "finder: %v\n", err)
		os.Exit(1)
	}

	findSet := toSet(findAddrs)
	avoidSet := toSet(avoidAddrs)
	isFind := func(st *state.State) bool { return findSet[st.PC()] }
	isAvoid := func(st *state.State) bool { return avoidSet[st.PC()] }

	scheduler := sched.NewRandLIFO()
	found, _, err := sched.Explore(I, scheduler, s, isFind, isAvoid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "finder: %v\n", err)
		os.Exit(1)
	}

	if found != nil {
		fmt.Printf("state found! dumping proof to %s\n", *output)
		if err := found.DumpFS(func(name string, data []byte) error {
			return os.WriteFile(*output+"/"+name, data, 0o644)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "finder: dump: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Println("state not found")
	}
}

func toSet(addrs []uint64) map[uint64]bool {
	m := make(map[uint64]bool, len(addrs))
	for _, a := range addrs {
		m[a] = true
	}
	return m
}
