package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_Tree(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "procurement", root.Name())

	tests := []struct {
		path []string
		name string
	}{
		{[]string{"start"}, "start"},
		{[]string{"run"}, "start"},
		{[]string{"migrate", "up"}, "up"},
		{[]string{"migrate", "down"}, "down"},
		{[]string{"migrate", "version"}, "version"},
		{[]string{"seed"}, "seed"},
		{[]string{"worker", "run"}, "run"},
	}
	for _, tt := range tests {
		cmd, _, err := root.Find(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.name, cmd.Name(), tt.path)
	}
}

func TestMigrateDown_Flags(t *testing.T) {
	cmd, _, err := NewRootCommand().Find([]string{"migrate", "down"})
	require.NoError(t, err)

	steps, err := cmd.Flags().GetInt("steps")
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	all, err := cmd.Flags().GetBool("all")
	require.NoError(t, err)
	assert.False(t, all)
}

func TestSeed_HospitalFlag(t *testing.T) {
	cmd, _, err := NewRootCommand().Find([]string{"seed"})
	require.NoError(t, err)

	flag := cmd.Flags().Lookup("hospital")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
