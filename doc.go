// Package proarc holds module level assets shared by the binaries.
package proarc

import _ "embed"

// Readme is served as the OpenAPI description.
//
//go:embed README.md
var Readme string
