package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type layoutOutput struct {
	Variant string `json:"variant"`
	State   string `json:"state"`
	Nodes   []struct {
		ID int     `json:"id"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	} `json:"nodes"`
}

func TestLayoutCommandUsesShippedVariants(t *testing.T) {
	for variant, count := range map[string]int{"A": 24, "b": 25} {
		out, err := run(t, "--root", "../..", "layout", variant, "--seed", "7", "--json")
		require.NoError(t, err)

		var snap layoutOutput
		require.NoError(t, json.Unmarshal([]byte(out), &snap))
		assert.Len(t, snap.Nodes, count, variant)
		assert.Equal(t, "idle", snap.State)
	}
}

func TestLayoutCommandIsDeterministicForSeed(t *testing.T) {
	first, err := run(t, "--root", "../..", "layout", "A", "--seed", "42")
	require.NoError(t, err)
	second, err := run(t, "--root", "../..", "layout", "A", "--seed", "42")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "Trail Making Test A")
}

func TestLayoutCommandRejectsUnknownVariant(t *testing.T) {
	_, err := run(t, "--root", t.TempDir(), "layout", "C")
	assert.ErrorContains(t, err, "unknown variant")
}

func TestUserAddRejectsWeakPassword(t *testing.T) {
	_, err := run(t, "user", "add", "--patient-id", "P-1", "--password", "short")
	assert.ErrorContains(t, err, "password must be")
}

func TestRecordRejectsUnknownCategory(t *testing.T) {
	_, err := run(t, "--root", t.TempDir(), "record", "--category", "fruits")
	assert.Error(t, err)
}

func TestCommandsAreRegistered(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "record", "layout", "predict", "user"})
}
