package model

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings map[string]string

func (f fakeSettings) GetSetting(key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

func TestResolveModelID_CLIOverridesEverything(t *testing.T) {
	t.Setenv(ModelEnvVar, "env/model")
	res, err := ResolveModelID(fakeSettings{"model_name": "config/model"}, "cli/model")
	require.NoError(t, err)
	assert.Equal(t, "cli/model", res.ModelID)
	assert.Equal(t, SourceCLI, res.Source)
}

func TestResolveModelID_EnvOverridesConfig(t *testing.T) {
	t.Setenv(ModelEnvVar, "env/model")
	res, err := ResolveModelID(fakeSettings{"model_name": "config/model"}, "")
	require.NoError(t, err)
	assert.Equal(t, "env/model", res.ModelID)
	assert.Equal(t, SourceEnv, res.Source)
}

func TestResolveModelID_ConfigUsedWhenNoCLIOrEnv(t *testing.T) {
	require.NoError(t, os.Unsetenv(ModelEnvVar))
	res, err := ResolveModelID(fakeSettings{"model_name": "config/model"}, "")
	require.NoError(t, err)
	assert.Equal(t, "config/model", res.ModelID)
	assert.Equal(t, SourceConfig, res.Source)
}

func TestResolveModelID_FallsBackToDefault(t *testing.T) {
	require.NoError(t, os.Unsetenv(ModelEnvVar))
	res, err := ResolveModelID(fakeSettings{}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModelID, res.ModelID)
	assert.Equal(t, SourceDefault, res.Source)
}
