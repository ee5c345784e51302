package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhews/mhews/internal/conf"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := RootCommand(&conf.Settings{Version: "1.2.3"})
	assert.Equal(t, "1.2.3", root.Version)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "notify", "weekly"}, names)
}

func TestRootCommand_FlagsWriteSettings(t *testing.T) {
	settings := &conf.Settings{}
	root := RootCommand(settings)
	require.NoError(t, root.PersistentFlags().Parse([]string{"--debug", "--database", "mysql"}))

	assert.True(t, settings.Debug)
	assert.Equal(t, "mysql", settings.Database.Type)
}

func TestInitialize_DebugRaisesLevels(t *testing.T) {
	settings := &conf.Settings{Debug: true}
	require.NoError(t, initialize(settings))
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
}
