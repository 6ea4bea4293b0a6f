// Package openapi carries the OpenAPI description of the explorer's REST API.
package openapi

import (
	_ "embed"
	"sync"

	"github.com/ghodss/yaml"
)

//go:embed openapi.yml
var document []byte

var (
	jsonOnce     sync.Once
	jsonDocument []byte
	jsonErr      error
)

// YAML returns the document as written.
func YAML() []byte {
	return document
}

// JSON returns the document converted to JSON. The conversion runs once.
func JSON() ([]byte, error) {
	jsonOnce.Do(func() {
		jsonDocument, jsonErr = yaml.YAMLToJSON(document)
	})
	return jsonDocument, jsonErr
}
