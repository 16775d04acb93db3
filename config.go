package voicegate

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/voicegate/voicegate/internal/feed"
)

// Config is the on-disk service configuration. Any field can be
// overridden at load time through a VOICEGATE_* environment variable.
type Config struct {
	ListenAddr               string   `json:"listen_addr"`
	LogLevel                 string   `json:"log_level"`
	ICEServers               []string `json:"ice_servers"`
	DefaultSpeakingThreshold float64  `json:"default_speaking_threshold_db"`
	DefaultVADThreshold      float64  `json:"default_voice_activity_threshold_db"`
	SamplingIntervalMS       int      `json:"sampling_interval_ms"`
	VADCooldownMS            int      `json:"vad_cooldown_ms"`
	LevelBroadcastIntervalMS int      `json:"level_broadcast_interval_ms"`
}

// SamplingInterval returns the feed sampling interval as a duration.
func (c *Config) SamplingInterval() time.Duration {
	return time.Duration(c.SamplingIntervalMS) * time.Millisecond
}

// VADCooldown returns the voice activity mute cooldown as a duration.
func (c *Config) VADCooldown() time.Duration {
	return time.Duration(c.VADCooldownMS) * time.Millisecond
}

// LevelBroadcastInterval returns how often peak levels are pushed to
// websocket subscribers.
func (c *Config) LevelBroadcastInterval() time.Duration {
	return time.Duration(c.LevelBroadcastIntervalMS) * time.Millisecond
}

var defaultConfig = &Config{
	ListenAddr:               ":8080",
	LogLevel:                 "info",
	DefaultSpeakingThreshold: feed.DefaultSpeakingThreshold,
	DefaultVADThreshold:      feed.VADDisabledThreshold,
	SamplingIntervalMS:       1,
	VADCooldownMS:            200,
	LevelBroadcastIntervalMS: 250,
}

var (
	config     *Config
	configPath = "voicegate.json"
	configLock = &sync.Mutex{}
)

// LoadConfig reads the configuration file, falling back to defaults when
// it is missing or malformed, then applies environment overrides. It is
// a no-op once a config has been loaded.
func LoadConfig() {
	configLock.Lock()
	defer configLock.Unlock()

	if config != nil {
		return
	}

	if path := os.Getenv("VOICEGATE_CONFIG"); path != "" {
		configPath = path
	}

	loaded := *defaultConfig
	file, err := os.Open(configPath)
	if err == nil {
		if err := json.NewDecoder(file).Decode(&loaded); err != nil {
			logger.Warn().Err(err).Str("path", configPath).Msg("config file malformed, using defaults")
			loaded = *defaultConfig
		}
		_ = file.Close()
	} else if !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", configPath).Msg("config file not accessible, using defaults")
	}

	applyEnvOverrides(&loaded)
	if loaded.SamplingIntervalMS <= 0 {
		loaded.SamplingIntervalMS = defaultConfig.SamplingIntervalMS
	}
	if loaded.VADCooldownMS <= 0 {
		loaded.VADCooldownMS = defaultConfig.VADCooldownMS
	}
	if loaded.LevelBroadcastIntervalMS <= 0 {
		loaded.LevelBroadcastIntervalMS = defaultConfig.LevelBroadcastIntervalMS
	}
	config = &loaded
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("VOICEGATE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("VOICEGATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("VOICEGATE_ICE_SERVER"); v != "" {
		c.ICEServers = []string{v}
	}
	if v, ok := envFloat("VOICEGATE_SPEAKING_THRESHOLD_DB"); ok {
		c.DefaultSpeakingThreshold = v
	}
	if v, ok := envFloat("VOICEGATE_VOICE_ACTIVITY_THRESHOLD_DB"); ok {
		c.DefaultVADThreshold = v
	}
	if v, ok := envInt("VOICEGATE_SAMPLING_INTERVAL_MS"); ok {
		c.SamplingIntervalMS = v
	}
	if v, ok := envInt("VOICEGATE_VAD_COOLDOWN_MS"); ok {
		c.VADCooldownMS = v
	}
	if v, ok := envInt("VOICEGATE_LEVEL_BROADCAST_INTERVAL_MS"); ok {
		c.LevelBroadcastIntervalMS = v
	}
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn().Str("name", name).Str("value", v).Msg("ignoring non-numeric environment override")
		return 0, false
	}
	return f, true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("name", name).Str("value", v).Msg("ignoring non-numeric environment override")
		return 0, false
	}
	return n, true
}

// SaveConfig writes the current configuration back to disk.
func SaveConfig() error {
	configLock.Lock()
	defer configLock.Unlock()

	if config == nil {
		return fmt.Errorf("config not loaded")
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
