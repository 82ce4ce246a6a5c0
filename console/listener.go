package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/teranos/posecam"
)

// ErrAborted is returned by Listen when the user quit before starting a capture.
var ErrAborted = errors.New("console: capture aborted before start")

// DefaultRefresh is how often the console polls capture progress.
const DefaultRefresh = 100 * time.Millisecond

// Listen turns user input into start/stop signals until ctx is done.
//
// When in is a terminal the bubbletea console is shown; otherwise input is
// read line by line: an empty line starts the capture and "q" stops it.
func Listen(ctx context.Context, in *os.File, out io.Writer, signals *posecam.Signals, source StatusSource) error {
	if term.IsTerminal(in.Fd()) {
		return RunProgram(ctx, in, out, NewModel(signals, source, DefaultRefresh))
	}
	return ListenLines(ctx, in, out, signals)
}

// RunProgram runs the bubbletea console until the user leaves or ctx is done.
func RunProgram(ctx context.Context, in io.Reader, out io.Writer, model Model) error {
	p := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out))

	go func() {
		<-ctx.Done()
		p.Send(doneMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	if m, ok := final.(Model); ok && m.Aborted() {
		return ErrAborted
	}
	return nil
}

// ListenLines is the headless listener for piped or redirected input.
func ListenLines(ctx context.Context, in io.Reader, out io.Writer, signals *posecam.Signals) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, "Press ENTER key to start, q to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
				if signals.Start() {
					fmt.Fprintln(out, "Program started capturing.")
				}
			case "q":
				if !signals.RequestStop() {
					continue
				}
				if !signals.Started() {
					fmt.Fprintln(out, "Capture aborted.")
					return ErrAborted
				}
				fmt.Fprintln(out, "Capturing stopped. Exiting.")
			}
		}
	}
}
