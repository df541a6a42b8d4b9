package config_test

import (
	"testing"

	"github.com/kava-labs/kava-dev-proxy/config"
	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestUnitTestMergeExternalEnabledWins(t *testing.T) {
	inline := config.Options{Enabled: boolPtr(true)}

	merged := config.Merge(inline, &config.FileConfig{Enabled: boolPtr(false)})

	assert.False(t, merged.IsEnabled())
	assert.True(t, inline.IsEnabled())
}

func TestUnitTestMergeWithoutExternalKeepsInline(t *testing.T) {
	inline := config.Options{Env: "staging", DevOnly: true}

	assert.Equal(t, inline.Env, config.Merge(inline, nil).Env)
	assert.True(t, config.Merge(inline, nil).DevOnly)
}

func TestUnitTestMergeIsShallow(t *testing.T) {
	prefix := "[Inline]"
	level := logging.LevelWarn
	inline := config.Options{
		Logger: config.LoggerConfig{Prefix: &prefix, Level: &level},
		Targets: config.Targets{
			"local":   {{Key: "v3", Value: config.Bare("http://inline")}},
			"staging": {{Key: "v3", Value: config.Bare("http://staging")}},
		},
		RequestFilter: func(url, method string) bool { return false },
	}
	debug := logging.LevelDebug
	external := &config.FileConfig{
		Logger: &config.LoggerConfig{Level: &debug},
		Targets: config.Targets{
			"local": {{Key: "v1", Value: config.Bare("http://external")}},
		},
	}

	merged := config.Merge(inline, external)

	// the whole logger object is replaced, the inline prefix does not survive
	assert.Nil(t, merged.Logger.Prefix)
	assert.Equal(t, logging.LevelDebug, merged.Logger.Resolve().Level)
	assert.Equal(t, logging.DefaultPrefix, merged.Logger.Resolve().Prefix)

	_, hasStaging := merged.Targets["staging"]
	assert.False(t, hasStaging)

	assert.NotNil(t, merged.RequestFilter)
}

func TestUnitTestOptionDefaults(t *testing.T) {
	var options config.Options

	assert.True(t, options.IsEnabled())
	assert.Equal(t, config.EnvLocal, options.EffectiveEnv())
	assert.Equal(t, config.FilterActionObserveOnly, options.EffectiveFilterAction())
	assert.Equal(t, config.DefaultMaxBufferedBodyBytes, options.EffectiveMaxBufferedBodyBytes())

	settings := options.Logger.Resolve()
	assert.Equal(t, logging.DefaultSettings(), settings)
}
