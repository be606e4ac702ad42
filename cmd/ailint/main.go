// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ailint checks source files against natural-language rules using
// a language model, caching every verdict by content.
//
// Usage:
//
//	ailint [paths...]        lint the configured files (or the given paths)
//	ailint init              write a starter .ailint.yaml
//	ailint serve --port 8080 serve POST /v1/lint
//	ailint cache clear       drop every cached verdict
//
// Exit status is 1 when a rule with setting "error" reported a violation,
// 2 for usage or configuration errors, and 0 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run executes the CLI and maps the outcome to an exit status.
func run(ctx context.Context, args []string) int {
	root := newRootCmd(newApp(os.Stdout, os.Stderr))
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	fmt.Fprintf(os.Stderr, "ailint: %v\n", err)
	return ExitUsage
}
