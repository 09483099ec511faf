package logger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Duration
		wantErr  bool
	}{
		{name: "string duration", input: `"5s"`, expected: Duration(5 * time.Second)},
		{name: "numeric nanoseconds", input: `5000000000`, expected: Duration(5 * time.Second)},
		{name: "compound string", input: `"1h30m45s"`, expected: Duration(time.Hour + 30*time.Minute + 45*time.Second)},
		{name: "invalid string", input: `"invalid"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.JSONEq(t, `"1.5s"`, string(out))
}

func TestOTelConfig_JSONUnmarshaling(t *testing.T) {
	configJSON := `{
		"enabled": true,
		"endpoint": "localhost:4317",
		"service_name": "devicetracker-test",
		"batch_timeout": "10s",
		"insecure": true,
		"headers": {"x-api-key": "test-key"}
	}`

	var config OTelConfig

	require.NoError(t, json.Unmarshal([]byte(configJSON), &config))

	assert.True(t, config.Enabled)
	assert.Equal(t, "localhost:4317", config.Endpoint)
	assert.Equal(t, "devicetracker-test", config.ServiceName)
	assert.Equal(t, Duration(10*time.Second), config.BatchTimeout)
	assert.True(t, config.Insecure)
	assert.Equal(t, "test-key", config.Headers["x-api-key"])
}
