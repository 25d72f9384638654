package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/cmdrunner/internal/manifest"
)

// Exit codes reported by the binary.
const (
	exitOK          = 0
	exitFailure     = 1
	exitBadManifest = 2
)

func main() {
	_, _ = maxprocs.Set()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var fmtErr *manifest.FormatError
	if errors.As(err, &fmtErr) {
		return exitBadManifest
	}
	return exitFailure
}
