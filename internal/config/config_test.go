package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/posecam"
)

func noEnv(string) string { return "" }

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posecam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", noEnv)
	require.NoError(t, err)

	assert.Equal(t, "poses.json", cfg.OutputPath)
	assert.Equal(t, "xr_log.txt", cfg.LogPath)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.Equal(t, 4.0, cfg.FrameRate)
	assert.Equal(t, 250*time.Millisecond, cfg.StartPollInterval)
	assert.Equal(t, "sim", cfg.Runtime)
	assert.Empty(t, cfg.StatusCard)
	assert.Equal(t, "/interaction_profiles/htc/vive_controller", cfg.InteractionProfile)
	assert.Len(t, cfg.RequiredExtensions, 3)
	assert.Equal(t, "/user/hand/left/input/aim/pose", cfg.Hands.Left.PosePath)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
output_path: capture.json
log_level: debug
frame_rate: 30
start_poll_interval: 100ms
status_card: card.png
required_extensions:
  - XR_KHR_opengl_enable
hands:
  right:
    path: /user/hand/right
    pose_path: /user/hand/right/input/grip/pose
sim:
  frame_period: 5ms
  focus_after: 1
`)

	cfg, err := load(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "capture.json", cfg.OutputPath)
	assert.Equal(t, "xr_log.txt", cfg.LogPath, "unset fields keep their defaults")
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 30.0, cfg.FrameRate)
	assert.Equal(t, 100*time.Millisecond, cfg.StartPollInterval)
	assert.Equal(t, "card.png", cfg.StatusCard)
	assert.Equal(t, []string{posecam.ExtOpenGLEnable}, cfg.RequiredExtensions)
	assert.Equal(t, "/user/hand/right/input/grip/pose", cfg.Hands.Right.PosePath)
	assert.Equal(t, "/user/hand/left/input/aim/pose", cfg.Hands.Left.PosePath)
	assert.Equal(t, 5*time.Millisecond, cfg.Sim.FramePeriod)

	sim := cfg.SimRuntimeConfig()
	assert.Equal(t, int64(5_000_000), sim.FramePeriod)
	assert.Equal(t, 1, sim.FocusAfter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "output_path: from-file.json\n")

	cfg, err := load(path, envOf(map[string]string{
		"POSECAM_OUTPUT": "from-env.json",
		"POSECAM_LOG":    "env.log",
		"POSECAM_DEBUG":  "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-env.json", cfg.OutputPath)
	assert.Equal(t, "env.log", cfg.LogPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_UnknownRuntime(t *testing.T) {
	_, err := load("", envOf(map[string]string{"POSECAM_RUNTIME": "steamvr"}))
	assert.ErrorIs(t, err, ErrUnknownRuntime)
}

func TestLoad_Errors(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), noEnv)
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = load(writeConfig(t, "frame_rate: [1, 2"), noEnv)
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = load(writeConfig(t, "frame_rate: 0\n"), noEnv)
	assert.ErrorContains(t, err, "frame_rate must be > 0")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing output", func(c *Config) { c.OutputPath = "" }, "output_path is required"},
		{"missing log", func(c *Config) { c.LogPath = "" }, "log_path is required"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level must be one of"},
		{"negative poll", func(c *Config) { c.StartPollInterval = -time.Second }, "start_poll_interval"},
		{"zero frame period", func(c *Config) { c.Sim.FramePeriod = 0 }, "sim.frame_period"},
		{"zero focus", func(c *Config) { c.Sim.FocusAfter = 0 }, "sim.focus_after"},
		{"bad profile", func(c *Config) { c.InteractionProfile = "vive" }, "interaction_profile"},
		{"bad hand path", func(c *Config) { c.Hands.Left.Path = "/hand/left" }, "hands.left.path"},
		{"pose outside hand", func(c *Config) {
			c.Hands.Right.PosePath = "/user/hand/left/input/aim/pose"
		}, "hands.right.pose_path"},
		{"same hands", func(c *Config) { c.Hands.Right = c.Hands.Left }, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, Validate(cfg), tt.errMsg)
		})
	}

	assert.NoError(t, Validate(Default()))
}

func TestConfig_Conversions(t *testing.T) {
	cfg := Default()
	cfg.Hands.Left.PosePath = "/user/hand/left/input/grip/pose"
	logger := slog.Default()

	rig := cfg.RigConfig(logger)
	assert.Equal(t, "/user/hand/left/input/grip/pose", rig.Hands[posecam.LeftHand].PosePath)
	assert.Equal(t, cfg.InteractionProfile, rig.InteractionProfile)
	assert.Same(t, logger, rig.Logger)
	assert.Nil(t, rig.TripPolicy, "the rig falls back to the default policy")

	cfg.StopOnError = true
	strict := cfg.RigConfig(logger)
	require.NotNil(t, strict.TripPolicy)
	assert.True(t, strict.TripPolicy.StopOnError)
	assert.True(t, strict.TripPolicy.StopOnFall)

	capture := cfg.CaptureConfig()
	assert.Equal(t, cfg.FrameRate, capture.FrameRate)
	assert.Equal(t, cfg.StartPollInterval, capture.StartPollInterval)
}
