package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "repay-roundtrip.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "repay-roundtrip", s.Name)
	assert.Len(t, s.Steps, 4)
	assert.Len(t, s.Actors, 2)
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: has a misspelled section
actors:
  alice: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
stepz:
  - op: advance
    seconds: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario")
}

func TestLoadScenario_MissingSteps(t *testing.T) {
	path := writeScenario(t, `
name: empty
description: no steps at all
actors:
  alice: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps list is required")
}

func TestLoadScenario_UnknownActorInStep(t *testing.T) {
	path := writeScenario(t, `
name: ghost
description: step refers to an actor that does not exist
actors:
  alice: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
steps:
  - op: accept
    actor: mallory
    offer: offer-1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown actor")
}

func TestLoadScenario_BadAddress(t *testing.T) {
	path := writeScenario(t, `
name: badaddr
description: actor address is not hex
actors:
  alice: "not-an-address"
steps:
  - op: advance
    seconds: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadScenario_UnknownAssertionType(t *testing.T) {
	path := writeScenario(t, `
name: badassert
description: assertion type is not recognized
actors:
  alice: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
steps:
  - op: advance
    seconds: 1
assertions:
  - type: trace_contains
    offer: offer-1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown assertion type")
}

func TestLoadScenario_CreateWithoutSpec(t *testing.T) {
	path := writeScenario(t, `
name: nospec
description: create step missing its offer payload
actors:
  alice: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
steps:
  - op: create
    actor: alice
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create requires spec")
}
