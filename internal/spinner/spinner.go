// Package spinner draws a single-line activity indicator for long model calls.
package spinner

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var frameStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1f6feb", Dark: "#58a6ff"})

// Interval is the time between frames.
const Interval = 80 * time.Millisecond

// Spinner redraws "<frame> <message>" on one line until stopped.
// The message can be changed while it runs.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	width   int

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.loop()
	return s
}

// SetMessage replaces the text shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the spinner and clears its line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) loop() {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-s.done:
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%*s\r", s.width, "") //nolint:errcheck
			s.mu.Unlock()
			close(s.cleared)
			return
		case <-ticker.C:
			s.draw(frames[i%len(frames)])
		}
	}
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := frameStyle.Render(frame) + " " + s.message
	width := runewidth.StringWidth(frame + " " + s.message)
	pad := 0
	if s.width > width {
		pad = s.width - width
	}
	fmt.Fprintf(s.w, "\r%s%*s", line, pad, "") //nolint:errcheck
	if width > s.width {
		s.width = width
	}
}
