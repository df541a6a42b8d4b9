package logging_test

import (
	"encoding/json"
	"testing"

	"github.com/kava-labs/kava-dev-proxy/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestUnitTestParseLogLevelAcceptsNamesAndNumbers(t *testing.T) {
	testCases := []struct {
		raw      string
		expected logging.LogLevel
	}{
		{"NONE", logging.LevelNone},
		{"error", logging.LevelError},
		{"Warn", logging.LevelWarn},
		{"INFO", logging.LevelInfo},
		{"debug", logging.LevelDebug},
		{"0", logging.LevelNone},
		{"4", logging.LevelDebug},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			level, err := logging.ParseLogLevel(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestUnitTestParseLogLevelRejectsUnknownValues(t *testing.T) {
	for _, raw := range []string{"", "TRACE", "5", "-1", "verbose"} {
		_, err := logging.ParseLogLevel(raw)
		assert.Error(t, err, raw)
	}
}

func TestUnitTestLogLevelDecodesFromJSONAndYAML(t *testing.T) {
	var fromJSON struct {
		Level logging.LogLevel `json:"level"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"level": 4}`), &fromJSON))
	assert.Equal(t, logging.LevelDebug, fromJSON.Level)

	require.NoError(t, json.Unmarshal([]byte(`{"level": "warn"}`), &fromJSON))
	assert.Equal(t, logging.LevelWarn, fromJSON.Level)

	var fromYAML struct {
		Level logging.LogLevel `yaml:"level"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("level: ERROR\n"), &fromYAML))
	assert.Equal(t, logging.LevelError, fromYAML.Level)

	encoded, err := json.Marshal(logging.LevelInfo)
	require.NoError(t, err)
	assert.Equal(t, `"INFO"`, string(encoded))
}
