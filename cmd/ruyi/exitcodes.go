package main

import "os"

// Exit codes, spec.md §6: 0 success, 1 user error / no match, 2
// data-model error, 127 shim fallback failure.
const (
	ExitSuccess      = 0
	ExitGeneral      = 1
	ExitDataModel    = 2
	ExitShimFallback = 127
)

func exitWithCode(code int) {
	os.Exit(code)
}
