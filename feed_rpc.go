package voicegate

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/voicegate/voicegate/internal/feed"
)

// Constants for feed control validation
const (
	// MinThresholdDB and MaxThresholdDB bound wire-supplied thresholds.
	// Levels ride the RTP audio-level extension, whose representable
	// range is 0 down to -127 dB.
	MinThresholdDB = -127.0
	MaxThresholdDB = 0.0

	// MaxLocalVolume caps the playback gain; values above 1.0 amplify.
	MaxLocalVolume = 2.0
)

// Feed RPC Direct Handlers
// This module provides direct handlers for the high-frequency feed control
// messages arriving on the peer's rpc data channel: threshold tuning while
// dragging a slider, mute toggles and gain changes.
//
// The handlers parse the JSON parameter maps directly and validate values
// before they reach a feed, so malformed or out-of-range requests are
// rejected with a consistent error message.

// validateFloat64Param extracts and validates a float64 parameter from the params map
func validateFloat64Param(params map[string]interface{}, paramName, methodName string, min, max float64) (float64, error) {
	value, ok := params[paramName].(float64)
	if !ok {
		return 0, fmt.Errorf("%s: %s parameter must be a number, got %T", methodName, paramName, params[paramName])
	}
	if value < min || value > max {
		return 0, fmt.Errorf("%s: %s value %v out of range [%v to %v]", methodName, paramName, value, min, max)
	}
	return value, nil
}

// validateBoolParam extracts and validates a bool parameter from the params map
func validateBoolParam(params map[string]interface{}, paramName, methodName string) (bool, error) {
	value, ok := params[paramName].(bool)
	if !ok {
		return false, fmt.Errorf("%s: %s parameter must be a boolean, got %T", methodName, paramName, params[paramName])
	}
	return value, nil
}

// Direct handler for speaking threshold changes
func handleSetSpeakingThresholdDirect(f *feed.Feed, params map[string]interface{}) (interface{}, error) {
	threshold, err := validateFloat64Param(params, "threshold", "setSpeakingThreshold", MinThresholdDB, MaxThresholdDB)
	if err != nil {
		return nil, err
	}
	f.SetSpeakingThreshold(threshold)
	return nil, nil
}

// Direct handler for voice activity threshold changes
func handleSetVoiceActivityThresholdDirect(f *feed.Feed, params map[string]interface{}) (interface{}, error) {
	threshold, err := validateFloat64Param(params, "threshold", "setVoiceActivityThreshold", MinThresholdDB, MaxThresholdDB)
	if err != nil {
		return nil, err
	}
	f.SetVoiceActivityThreshold(threshold)
	return nil, nil
}

// Direct handler for playback gain changes
func handleSetLocalVolumeDirect(f *feed.Feed, params map[string]interface{}) (interface{}, error) {
	volume, err := validateFloat64Param(params, "volume", "setLocalVolume", 0, MaxLocalVolume)
	if err != nil {
		return nil, err
	}
	f.SetLocalVolume(volume)
	return nil, nil
}

// Direct handler for explicit mute changes
func handleSetMutedDirect(f *feed.Feed, params map[string]interface{}) (interface{}, error) {
	audio, err := validateBoolParam(params, "audio", "setMuted")
	if err != nil {
		return nil, err
	}
	video, err := validateBoolParam(params, "video", "setMuted")
	if err != nil {
		return nil, err
	}
	f.SetMuted(audio, video)
	return nil, nil
}

// Direct handler for starting and stopping measurement
func handleSetMeasuringDirect(f *feed.Feed, params map[string]interface{}) (interface{}, error) {
	enabled, err := validateBoolParam(params, "enabled", "setMeasuring")
	if err != nil {
		return nil, err
	}
	if enabled {
		f.StartMeasuring()
	} else {
		f.StopMeasuring()
	}
	return nil, nil
}

// Direct handler for feed state queries
func handleGetFeedStateDirect(f *feed.Feed, _ map[string]interface{}) (interface{}, error) {
	return snapshotFeed(f), nil
}

// handleFeedRPCDirect routes feed control calls to their direct handlers.
// This function must be kept in sync with isFeedMethod.
func handleFeedRPCDirect(f *feed.Feed, method string, params map[string]interface{}) (interface{}, error) {
	switch method {
	case "setSpeakingThreshold":
		return handleSetSpeakingThresholdDirect(f, params)
	case "setVoiceActivityThreshold":
		return handleSetVoiceActivityThresholdDirect(f, params)
	case "setLocalVolume":
		return handleSetLocalVolumeDirect(f, params)
	case "setMuted":
		return handleSetMutedDirect(f, params)
	case "setMeasuring":
		return handleSetMeasuringDirect(f, params)
	case "getFeedState":
		return handleGetFeedStateDirect(f, params)
	default:
		// This should never happen if isFeedMethod is correctly implemented
		return nil, fmt.Errorf("handleFeedRPCDirect: unsupported method '%s'", method)
	}
}

// isFeedMethod determines if a given RPC method has a direct handler.
func isFeedMethod(method string) bool {
	switch method {
	case "setSpeakingThreshold", "setVoiceActivityThreshold", "setLocalVolume", "setMuted", "setMeasuring", "getFeedState":
		return true
	default:
		return false
	}
}

// FeedRPCRequest is the JSON envelope arriving on the rpc data channel.
type FeedRPCRequest struct {
	ID     interface{}            `json:"id,omitempty"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

// FeedRPCResponse mirrors the request ID and carries either a result or
// an error string.
type FeedRPCResponse struct {
	ID     interface{} `json:"id,omitempty"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// onFeedRPCMessage handles one data channel message for a session.
func onFeedRPCMessage(msg webrtc.DataChannelMessage, session *Session) {
	var req FeedRPCRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		session.logger.Warn().Err(err).Msg("malformed feed rpc request")
		return
	}

	resp := FeedRPCResponse{ID: req.ID}
	if !isFeedMethod(req.Method) {
		resp.Error = fmt.Sprintf("unknown method '%s'", req.Method)
	} else if f := session.feed(); f == nil {
		resp.Error = "no feed attached to this session"
	} else if result, err := handleFeedRPCDirect(f, req.Method, req.Params); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Result = result
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		session.logger.Error().Err(err).Msg("failed to marshal feed rpc response")
		return
	}
	if session.RPCChannel == nil {
		return
	}
	if err := session.RPCChannel.SendText(string(payload)); err != nil {
		session.logger.Warn().Err(err).Msg("failed to send feed rpc response")
	}
}
