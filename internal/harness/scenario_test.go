package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/concurrent_invoices.yaml")
	require.NoError(t, err)
	assert.Equal(t, "concurrent_invoices", s.Name)
	require.Len(t, s.Terminals, 2)
	assert.Equal(t, 1, s.Terminals[0].StaleReads)
	require.Len(t, s.Seed, 1)
	assert.Equal(t, ActionOnlineAll, s.Steps[len(s.Steps)-1].Action)
	require.NotNil(t, s.Expect)
	assert.Len(t, s.Expect.Invoices, 3)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nstep:\n  - action: drain\n"), 0o644))
	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no name", "steps:\n  - action: drain\n", "name is required"},
		{"no steps", "name: x\n", "at least one step"},
		{"unknown action", "name: x\nsteps:\n  - action: explode\n", "unknown action"},
		{"missing action", "name: x\nsteps:\n  - order: ORD-1\n", "action is required"},
		{"missing order", "name: x\nsteps:\n  - action: cancel\n", "requires order"},
		{"unknown terminal", "name: x\nsteps:\n  - action: drain\n    terminal: z\n", "unknown terminal"},
		{"duplicate terminal", "name: x\nterminals:\n  - name: a\n  - name: a\nsteps:\n  - action: drain\n", "duplicate name"},
		{"fail without call", "name: x\nsteps:\n  - action: fail\n    error: unavailable\n", "requires call and error"},
		{"unknown fault", "name: x\nsteps:\n  - action: fail\n    call: CreateOrder\n    error: meteor\n", "unknown error"},
		{"pending for unknown terminal", "name: x\nsteps:\n  - action: drain\nexpect:\n  pending:\n    z: 0\n", "unknown terminal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
