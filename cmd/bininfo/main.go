// Command bininfo loads a binary via internal/loader and prints its
// segments, symbols, and relocations. Grounded on
// original_source/tools/bininfo.cpp.
package main

import (
	"fmt"
	"os"

	"github.com/borzacchiello/naazgo/internal/loader"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <bin>\n", os.Args[0])
		os.Exit(1)
	}

	path := os.Args[1]
	as, f, err := loader.LoadELF(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bininfo: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(path)
	fmt.Printf("  arch:  %s\n", f.Machine)
	fmt.Printf("  entry: %08xh\n", f.Entry)

	fmt.Println("\nSegments")
	fmt.Println("----------------------------------------------------")
	fmt.Println("  address range                          name")
	fmt.Println("----------------------------------------------------")
	for _, seg := range as.Segments() {
		fmt.Printf("  %016xh - %016xh  %s\n", seg.Addr, seg.Addr+uint64(len(seg.Data)), seg.Name)
	}

	fmt.Println("\nSymbols")
	fmt.Println("----------------------------------------------------")
	for addr, syms := range as.Symbols() {
		for _, sym := range syms {
			fmt.Printf("  %016xh  %-10s %s\n", addr, sym.Type, sym.Name)
		}
	}

	fmt.Println("\nRelocations")
	fmt.Println("----------------------------------------------------")
	for _, r := range as.Relocations() {
		fmt.Printf("  %016xh  %s\n", r.SiteAddr, r.Name)
	}
}
