package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teranos/posecam"
	"github.com/teranos/posecam/simxr"
	"github.com/teranos/posecam/trip"
)

// Config represents the complete posecam configuration
type Config struct {
	OutputPath         string        `yaml:"output_path"`         // Poses JSON, rewritten on every run
	LogPath            string        `yaml:"log_path"`            // Log file, truncated on every run
	LogLevel           string        `yaml:"log_level"`           // debug, info, warn, error
	FrameRate          float64       `yaml:"frame_rate"`          // Kept samples per second
	StartPollInterval  time.Duration `yaml:"start_poll_interval"` // Delay per frame while waiting for start
	Runtime            string        `yaml:"runtime"`             // Tracking backend: sim
	StatusCard         string        `yaml:"status_card"`         // Optional PNG summary path
	StopOnError        bool          `yaml:"stop_on_error"`       // End the loop as soon as a session error is dispatched
	InteractionProfile string        `yaml:"interaction_profile"`
	RequiredExtensions []string      `yaml:"required_extensions"`
	Hands              HandsConfig   `yaml:"hands"`
	Sim                SimConfig     `yaml:"sim"`
}

// HandsConfig contains the input paths of both controllers
type HandsConfig struct {
	Left  HandConfig `yaml:"left"`
	Right HandConfig `yaml:"right"`
}

// HandConfig contains the user path and pose binding of one controller
type HandConfig struct {
	Path     string `yaml:"path"`
	PosePath string `yaml:"pose_path"`
}

// SimConfig contains settings for the simulated runtime
type SimConfig struct {
	FramePeriod time.Duration `yaml:"frame_period"`
	FocusAfter  int           `yaml:"focus_after"` // Ticks from READY to FOCUSED
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	rig := posecam.DefaultRigConfig()
	capture := posecam.DefaultCaptureConfig()
	sim := simxr.DefaultConfig()

	return &Config{
		OutputPath:         "poses.json",
		LogPath:            "xr_log.txt",
		LogLevel:           "info",
		FrameRate:          capture.FrameRate,
		StartPollInterval:  capture.StartPollInterval,
		Runtime:            "sim",
		InteractionProfile: rig.InteractionProfile,
		RequiredExtensions: rig.RequiredExtensions,
		Hands: HandsConfig{
			Left:  HandConfig{Path: rig.Hands[posecam.LeftHand].Path, PosePath: rig.Hands[posecam.LeftHand].PosePath},
			Right: HandConfig{Path: rig.Hands[posecam.RightHand].Path, PosePath: rig.Hands[posecam.RightHand].PosePath},
		},
		Sim: SimConfig{
			FramePeriod: time.Duration(sim.FramePeriod),
			FocusAfter:  sim.FocusAfter,
		},
	}
}

// Load reads a YAML configuration file over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv(getenv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file values with POSECAM_* variables.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("POSECAM_OUTPUT"); v != "" {
		c.OutputPath = v
	}
	if v := getenv("POSECAM_LOG"); v != "" {
		c.LogPath = v
	}
	if v := getenv("POSECAM_RUNTIME"); v != "" {
		c.Runtime = v
	}
	if v := getenv("POSECAM_DEBUG"); v == "true" || v == "1" {
		c.LogLevel = "debug"
	}
}

// Level returns the slog level for LogLevel. Validate rejects unknown names.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// RigConfig converts the configuration for posecam.OpenRig.
func (c *Config) RigConfig(logger *slog.Logger) posecam.RigConfig {
	rig := posecam.DefaultRigConfig()
	rig.RequiredExtensions = c.RequiredExtensions
	rig.InteractionProfile = c.InteractionProfile
	rig.Hands[posecam.LeftHand] = posecam.HandPaths{Path: c.Hands.Left.Path, PosePath: c.Hands.Left.PosePath}
	rig.Hands[posecam.RightHand] = posecam.HandPaths{Path: c.Hands.Right.Path, PosePath: c.Hands.Right.PosePath}
	rig.Logger = logger
	if c.StopOnError {
		rig.TripPolicy = &trip.Policy{StopOnFall: true, StopOnError: true}
	}
	return rig
}

// CaptureConfig converts the pacing settings for posecam.Capture.
func (c *Config) CaptureConfig() posecam.CaptureConfig {
	return posecam.CaptureConfig{
		FrameRate:         c.FrameRate,
		StartPollInterval: c.StartPollInterval,
	}
}

// SimRuntimeConfig converts the simulated runtime settings.
func (c *Config) SimRuntimeConfig() simxr.Config {
	sim := simxr.DefaultConfig()
	sim.FramePeriod = c.Sim.FramePeriod.Nanoseconds()
	sim.FocusAfter = c.Sim.FocusAfter
	return sim
}

// ErrUnknownRuntime is returned for a runtime name no backend is built for.
var ErrUnknownRuntime = errors.New("unknown runtime")
