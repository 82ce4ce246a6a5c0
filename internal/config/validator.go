package config

import (
	"fmt"
	"strings"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.OutputPath == "" {
		return fmt.Errorf("output_path is required")
	}
	if cfg.LogPath == "" {
		return fmt.Errorf("log_path is required")
	}
	if !logLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}

	if cfg.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be > 0")
	}
	if cfg.StartPollInterval < 0 {
		return fmt.Errorf("start_poll_interval must be >= 0")
	}

	switch cfg.Runtime {
	case "sim":
		if cfg.Sim.FramePeriod <= 0 {
			return fmt.Errorf("sim.frame_period must be > 0")
		}
		if cfg.Sim.FocusAfter < 1 {
			return fmt.Errorf("sim.focus_after must be >= 1")
		}
	default:
		return fmt.Errorf("runtime %q: %w", cfg.Runtime, ErrUnknownRuntime)
	}

	if !strings.HasPrefix(cfg.InteractionProfile, "/interaction_profiles/") {
		return fmt.Errorf("interaction_profile must start with /interaction_profiles/, got %q", cfg.InteractionProfile)
	}

	if err := ValidateHand("left", cfg.Hands.Left); err != nil {
		return fmt.Errorf("hand validation failed: %w", err)
	}
	if err := ValidateHand("right", cfg.Hands.Right); err != nil {
		return fmt.Errorf("hand validation failed: %w", err)
	}
	if cfg.Hands.Left.Path == cfg.Hands.Right.Path {
		return fmt.Errorf("hands.left.path and hands.right.path must differ")
	}

	return nil
}

// ValidateHand checks one controller's input paths
func ValidateHand(name string, hand HandConfig) error {
	if !strings.HasPrefix(hand.Path, "/user/") {
		return fmt.Errorf("hands.%s.path must start with /user/, got %q", name, hand.Path)
	}
	if !strings.HasPrefix(hand.PosePath, hand.Path+"/") {
		return fmt.Errorf("hands.%s.pose_path %q must be below %q", name, hand.PosePath, hand.Path)
	}
	return nil
}
