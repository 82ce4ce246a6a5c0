package posecam

import (
	"encoding/json"
	"fmt"
	"os"
)

// SavePosesJSON writes poses to path as one indented JSON array, replacing any
// existing file.
func SavePosesJSON(path string, poses []PoseRecord) error {
	if poses == nil {
		poses = []PoseRecord{}
	}
	data, err := json.MarshalIndent(poses, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode poses: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write poses file: %w", err)
	}
	return nil
}

// LoadPosesJSON reads a file written by SavePosesJSON.
func LoadPosesJSON(path string) ([]PoseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read poses file: %w", err)
	}
	var poses []PoseRecord
	if err := json.Unmarshal(data, &poses); err != nil {
		return nil, fmt.Errorf("failed to parse poses file: %w", err)
	}
	return poses, nil
}
