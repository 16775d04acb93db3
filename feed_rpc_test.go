package voicegate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicegate/voicegate/internal/feed"
)

func newRPCTestFeed(t *testing.T) *feed.Feed {
	t.Helper()
	f := feed.New(feed.Config{ID: "rpc-test"})
	t.Cleanup(f.Dispose)
	return f
}

// Test validateFloat64Param function
func TestValidateFloat64Param(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]interface{}
		paramName   string
		methodName  string
		min         float64
		max         float64
		expected    float64
		expectError bool
	}{
		{
			name:        "valid parameter",
			params:      map[string]interface{}{"threshold": -45.0},
			paramName:   "threshold",
			methodName:  "testMethod",
			min:         -127,
			max:         0,
			expected:    -45.0,
			expectError: false,
		},
		{
			name:        "parameter at minimum boundary",
			params:      map[string]interface{}{"threshold": -127.0},
			paramName:   "threshold",
			methodName:  "testMethod",
			min:         -127,
			max:         0,
			expected:    -127.0,
			expectError: false,
		},
		{
			name:        "parameter at maximum boundary",
			params:      map[string]interface{}{"threshold": 0.0},
			paramName:   "threshold",
			methodName:  "testMethod",
			min:         -127,
			max:         0,
			expected:    0.0,
			expectError: false,
		},
		{
			name:        "parameter below minimum",
			params:      map[string]interface{}{"threshold": -128.0},
			paramName:   "threshold",
			methodName:  "testMethod",
			min:         -127,
			max:         0,
			expected:    0,
			expectError: true,
		},
		{
			name:        "parameter above maximum",
			params:      map[string]interface{}{"threshold": 1.0},
			paramName:   "threshold",
			methodName:  "testMethod",
			min:         -127,
			max:         0,
			expected:    0,
			expectError: true,
		},
		{
			name:        "wrong parameter type",
			params:      map[string]interface{}{"threshold": "loud"},
			paramName:   "threshold",
			methodName:  "testMethod",
			min:         -127,
			max:         0,
			expected:    0,
			expectError: true,
		},
		{
			name:        "missing parameter",
			params:      map[string]interface{}{},
			paramName:   "threshold",
			methodName:  "testMethod",
			min:         -127,
			max:         0,
			expected:    0,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validateFloat64Param(tt.params, tt.paramName, tt.methodName, tt.min, tt.max)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// Test validateBoolParam function
func TestValidateBoolParam(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]interface{}
		paramName   string
		expected    bool
		expectError bool
	}{
		{
			name:        "true value",
			params:      map[string]interface{}{"audio": true},
			paramName:   "audio",
			expected:    true,
			expectError: false,
		},
		{
			name:        "false value",
			params:      map[string]interface{}{"audio": false},
			paramName:   "audio",
			expected:    false,
			expectError: false,
		},
		{
			name:        "wrong parameter type",
			params:      map[string]interface{}{"audio": 1.0},
			paramName:   "audio",
			expected:    false,
			expectError: true,
		},
		{
			name:        "missing parameter",
			params:      map[string]interface{}{},
			paramName:   "audio",
			expected:    false,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validateBoolParam(tt.params, tt.paramName, "testMethod")
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// Test handleFeedRPCDirect routing and validation
func TestHandleFeedRPCDirect(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		params      map[string]interface{}
		expectError bool
	}{
		{
			name:        "set speaking threshold",
			method:      "setSpeakingThreshold",
			params:      map[string]interface{}{"threshold": -45.0},
			expectError: false,
		},
		{
			name:        "speaking threshold out of range",
			method:      "setSpeakingThreshold",
			params:      map[string]interface{}{"threshold": 3.0},
			expectError: true,
		},
		{
			name:        "set voice activity threshold",
			method:      "setVoiceActivityThreshold",
			params:      map[string]interface{}{"threshold": -50.0},
			expectError: false,
		},
		{
			name:        "voice activity threshold wrong type",
			method:      "setVoiceActivityThreshold",
			params:      map[string]interface{}{"threshold": "quiet"},
			expectError: true,
		},
		{
			name:        "set local volume",
			method:      "setLocalVolume",
			params:      map[string]interface{}{"volume": 0.5},
			expectError: false,
		},
		{
			name:        "negative volume",
			method:      "setLocalVolume",
			params:      map[string]interface{}{"volume": -0.1},
			expectError: true,
		},
		{
			name:        "set muted",
			method:      "setMuted",
			params:      map[string]interface{}{"audio": true, "video": false},
			expectError: false,
		},
		{
			name:        "set muted missing video flag",
			method:      "setMuted",
			params:      map[string]interface{}{"audio": true},
			expectError: true,
		},
		{
			name:        "set measuring",
			method:      "setMeasuring",
			params:      map[string]interface{}{"enabled": true},
			expectError: false,
		},
		{
			name:        "get feed state",
			method:      "getFeedState",
			params:      map[string]interface{}{},
			expectError: false,
		},
		{
			name:        "unknown method",
			method:      "unknownMethod",
			params:      map[string]interface{}{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRPCTestFeed(t)
			_, err := handleFeedRPCDirect(f, tt.method, tt.params)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Test that accepted RPC calls actually reach the feed
func TestFeedRPCAppliesChanges(t *testing.T) {
	f := newRPCTestFeed(t)

	_, err := handleFeedRPCDirect(f, "setSpeakingThreshold", map[string]interface{}{"threshold": -45.0})
	require.NoError(t, err)
	assert.Equal(t, -45.0, f.SpeakingThreshold())

	_, err = handleFeedRPCDirect(f, "setVoiceActivityThreshold", map[string]interface{}{"threshold": -50.0})
	require.NoError(t, err)
	assert.Equal(t, -50.0, f.VoiceActivityThreshold())
	assert.True(t, f.VADEnabled())

	_, err = handleFeedRPCDirect(f, "setLocalVolume", map[string]interface{}{"volume": 0.25})
	require.NoError(t, err)
	assert.Equal(t, 0.25, f.LocalVolume())

	_, err = handleFeedRPCDirect(f, "setMuted", map[string]interface{}{"audio": true, "video": true})
	require.NoError(t, err)
	assert.True(t, f.AudioMuted())
	assert.True(t, f.VideoMuted())
	assert.False(t, f.VADEnabled())

	result, err := handleFeedRPCDirect(f, "getFeedState", nil)
	require.NoError(t, err)
	snapshot, ok := result.(FeedSnapshot)
	require.True(t, ok)
	assert.Equal(t, "rpc-test", snapshot.ID)
	assert.True(t, snapshot.AudioMuted)
	assert.Equal(t, -50.0, snapshot.VoiceActivityThresholdDB)
}

// Test isFeedMethod function
func TestIsFeedMethod(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		expected bool
	}{
		{
			name:     "speaking threshold method",
			method:   "setSpeakingThreshold",
			expected: true,
		},
		{
			name:     "voice activity threshold method",
			method:   "setVoiceActivityThreshold",
			expected: true,
		},
		{
			name:     "local volume method",
			method:   "setLocalVolume",
			expected: true,
		},
		{
			name:     "mute method",
			method:   "setMuted",
			expected: true,
		},
		{
			name:     "measuring method",
			method:   "setMeasuring",
			expected: true,
		},
		{
			name:     "state query method",
			method:   "getFeedState",
			expected: true,
		},
		{
			name:     "non-feed method",
			method:   "someOtherMethod",
			expected: false,
		},
		{
			name:     "empty method",
			method:   "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isFeedMethod(tt.method)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Benchmark the direct handler path
func BenchmarkValidateFloat64Param(b *testing.B) {
	params := map[string]interface{}{"threshold": -45.0}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = validateFloat64Param(params, "threshold", "benchmarkMethod", -127, 0)
	}
}

func BenchmarkHandleFeedRPCDirect(b *testing.B) {
	f := feed.New(feed.Config{ID: "rpc-bench"})
	defer f.Dispose()
	params := map[string]interface{}{"threshold": -45.0}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = handleFeedRPCDirect(f, "setSpeakingThreshold", params)
	}
}
