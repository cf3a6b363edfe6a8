// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// Process exit codes.
const (
	ExitOK = 0
	// ExitUsage covers invalid flags, arguments and configuration.
	ExitUsage = 1
	// ExitResolution means resolution failed, including timeouts.
	ExitResolution = 2
	// ExitDiscovery means discovery failed before resolution could start.
	ExitDiscovery = 3
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
