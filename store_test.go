package posecam_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/posecam"
)

func TestSavePosesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.json")
	poses := []posecam.PoseRecord{
		posecam.NewPoseRecord(100, at(0.1, 0.2, 0.3), posecam.EmptyTransform(), at(0, 1.6, 0)),
		posecam.NewPoseRecord(200, at(0.4, 0.5, 0.6), at(1, 1, 1), posecam.EmptyTransform()),
	}

	require.NoError(t, posecam.SavePosesJSON(path, poses))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[\n    {\n        \"time\": 100,"), text)
	assert.True(t, strings.HasSuffix(text, "]\n"))

	loaded, err := posecam.LoadPosesJSON(path)
	require.NoError(t, err)
	assert.Equal(t, poses, loaded)
}

func TestSavePosesJSON_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.json")
	require.NoError(t, posecam.SavePosesJSON(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestSavePosesJSON_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.json")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is longer than the new file"), 0644))

	require.NoError(t, posecam.SavePosesJSON(path, nil))
	loaded, err := posecam.LoadPosesJSON(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadPosesJSON_Errors(t *testing.T) {
	_, err := posecam.LoadPosesJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = posecam.LoadPosesJSON(path)
	assert.ErrorContains(t, err, "failed to parse poses file")
}
