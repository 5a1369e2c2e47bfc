// Package cliargs implements the linker's own order-sensitive argument
// grammar (spec.md §6), since cobra's interspersed pflag parsing would
// destroy the left-to-right ordering -L/-l resolution depends on.
package cliargs

import (
	"fmt"
	"os"
	"strings"
)

// Parsed is the fully resolved result of one argument walk.
type Parsed struct {
	Output   string
	Inputs   []string // object files and resolved archive paths, in argument order
	Warnings []string
}

// Parse walks argv left to right, applying spec.md §6's rules: -o PATH
// sets the output (defaultOutput when absent, typically
// internal/config.DefaultOutput()); -L DIR / -LDIR appends a search path
// available to every -l that follows it; -l NAME / -lNAME resolves
// lib<NAME>.a against the search paths accumulated so far, warning and
// skipping if not found; any other -… flag is ignored; any other token is
// an input path, which must exist.
func Parse(argv []string, defaultOutput string) (Parsed, error) {
	result := Parsed{Output: defaultOutput}
	var searchPaths []string

	for i := 0; i < len(argv); i++ {
		tok := argv[i]

		switch {
		case tok == "-o":
			if i+1 >= len(argv) {
				return result, fmt.Errorf("cliargs: -o requires an argument")
			}
			i++
			result.Output = argv[i]

		case tok == "-L":
			if i+1 >= len(argv) {
				return result, fmt.Errorf("cliargs: -L requires an argument")
			}
			i++
			searchPaths = append(searchPaths, argv[i])

		case strings.HasPrefix(tok, "-L") && len(tok) > 2:
			searchPaths = append(searchPaths, tok[2:])

		case tok == "-l":
			if i+1 >= len(argv) {
				return result, fmt.Errorf("cliargs: -l requires an argument")
			}
			i++
			resolveLib(&result, searchPaths, argv[i])

		case strings.HasPrefix(tok, "-l") && len(tok) > 2:
			resolveLib(&result, searchPaths, tok[2:])

		case strings.HasPrefix(tok, "-"):
			// any other flag is ignored, per spec.md §6

		default:
			if _, err := os.Stat(tok); err != nil {
				return result, fmt.Errorf("cliargs: input %q does not exist: %w", tok, err)
			}
			result.Inputs = append(result.Inputs, tok)
		}
	}

	return result, nil
}

func resolveLib(result *Parsed, searchPaths []string, name string) {
	libName := "lib" + name + ".a"
	for _, dir := range searchPaths {
		candidate := dir + "/" + libName
		if _, err := os.Stat(candidate); err == nil {
			result.Inputs = append(result.Inputs, candidate)
			return
		}
	}
	result.Warnings = append(result.Warnings, fmt.Sprintf("library not found: -l%s (looked for %s in %v)", name, libName, searchPaths))
}
