package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aiwargamer/sitroom/internal/transcript"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Run completed, possibly with failed tasks
	ExitNoData  = 1 // No transcript data found at all
	ExitError   = 2 // Configuration, cache or runtime error
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, transcript.ErrNoData):
		return ExitNoData
	default:
		return ExitError
	}
}
