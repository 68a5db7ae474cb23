package model

import "os"

// DefaultModelID is the compiled-in encoder identifier used when no
// override is provided by CLI flag, environment variable, or persisted
// setting.
const DefaultModelID = "lightonai/ColBERT-Zero"

// ModelEnvVar is the environment variable checked for a model ID override.
const ModelEnvVar = "DOCBERT_MODEL"

// Source records which input supplied the resolved model ID.
type Source string

const (
	SourceCLI     Source = "cli"
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
	SourceDefault Source = "default"
)

// Resolution is the outcome of resolving which model ID to use.
type Resolution struct {
	ModelID string
	Source  Source
}

// SettingGetter is the subset of MetadataStore resolution needs: reading the
// persisted model_name setting.
type SettingGetter interface {
	GetSetting(key string) (string, bool, error)
}

// ResolveModelID resolves the model ID from, in priority order: an explicit
// cliModel override, the DOCBERT_MODEL environment variable, the persisted
// model_name setting, or the compiled default.
func ResolveModelID(settings SettingGetter, cliModel string) (Resolution, error) {
	envModel := os.Getenv(ModelEnvVar)
	configModel, hasConfig, err := settings.GetSetting("model_name")
	if err != nil {
		return Resolution{}, err
	}

	switch {
	case cliModel != "":
		return Resolution{ModelID: cliModel, Source: SourceCLI}, nil
	case envModel != "":
		return Resolution{ModelID: envModel, Source: SourceEnv}, nil
	case hasConfig:
		return Resolution{ModelID: configModel, Source: SourceConfig}, nil
	default:
		return Resolution{ModelID: DefaultModelID, Source: SourceDefault}, nil
	}
}
