package console

import (
	"fmt"
	"strings"

	"github.com/teranos/posecam"
)

// Summary renders the end-of-capture report printed to the console and drawn
// on the status card.
func Summary(result *posecam.CaptureResult, outputPath, logPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Totally %d frames recorded.\n", len(result.Poses))
	fmt.Fprintf(&b, "Initial time: %d.\n", result.InitialTime)
	if len(result.Poses) > 0 {
		fmt.Fprintf(&b, "Stop time: %d.\n", result.StopTime)
	} else {
		b.WriteString("Stop time: none.\n")
	}
	fmt.Fprintf(&b, "Loop iterations: %d in %s.\n", result.Frames, result.Duration.Round(1e6))
	if result.RestartRequested {
		b.WriteString("The runtime asked for a restart.\n")
	}
	fmt.Fprintf(&b, "Log: %s\n", logPath)
	fmt.Fprintf(&b, "Poses will be saved in %s\n", outputPath)
	fmt.Fprintf(&b, "Capture: %s\n", result.SessionID)
	return b.String()
}
