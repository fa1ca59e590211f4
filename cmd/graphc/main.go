// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command graphc compiles visual node graphs into Go source.
//
// Usage:
//
//	graphc compile hello.graph.yaml --library nodes.yaml -o hello.go
//	graphc compile hello.graph.yaml --library nodes.yaml --watch -o hello.go
//	graphc labels branch.fragment
//	graphc inline branch.fragment --branch True='fmt.Println("yes")' --param condition='x > 5'
//	graphc lint --library nodes.yaml
//	graphc serve --library nodes.yaml
//
// Settings are read from ~/.graphc/config.yaml (created on first run)
// and may be overridden with GRAPHC_* environment variables.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "graphc: %v\n", err)
		os.Exit(1)
	}
}
