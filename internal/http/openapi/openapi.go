// Package openapi embeds the OpenAPI document of the seat reservation API.
package openapi

import _ "embed"

//go:embed openapi.yaml
var YAML []byte
