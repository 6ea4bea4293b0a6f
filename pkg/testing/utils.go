package testing

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// CompareResults compares results with testdata/<filenamePrefix>.json.
// The actual output is written next to it as <filenamePrefix>.output.json to ease updating the golden file.
func CompareResults(t *testing.T, results any, filenamePrefix string) {
	bs, err := json.MarshalIndent(results, " ", "  ")
	require.Nil(t, err)
	outputName := fmt.Sprintf("testdata/%v.output.json", filenamePrefix)
	err = os.WriteFile(outputName, bs, 0644)
	require.Nil(t, err)
	expected, err := os.ReadFile(fmt.Sprintf("testdata/%v.json", filenamePrefix))
	require.Nil(t, err)
	require.JSONEq(t, string(expected), string(bs))
}

// LoadFixture decodes testdata/<name>.json into dest.
func LoadFixture(t *testing.T, name string, dest any) {
	bs, err := os.ReadFile(fmt.Sprintf("testdata/%v.json", name))
	require.Nil(t, err)
	require.Nil(t, json.Unmarshal(bs, dest))
}
