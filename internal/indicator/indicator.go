// Package indicator draws a "typing" animation on a terminal while a reply is produced.
package indicator

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMessage  = "🤖 Bot is typing"
	DefaultInterval = 400 * time.Millisecond
	clearWidth      = 60
)

// Typing animates one line of output. Start and Stop may be called from different goroutines.
type Typing struct {
	out      io.Writer
	message  string
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(out io.Writer) *Typing {
	return &Typing{out: out, message: DefaultMessage, interval: DefaultInterval}
}

// Start begins animating. It is a no-op while already running.
func (t *Typing) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.animate(t.stop, t.done)
}

// Stop ends the animation, waits for it to exit and clears the line. Safe to call repeatedly.
func (t *Typing) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
	fmt.Fprint(t.out, "\r"+strings.Repeat(" ", clearWidth)+"\r")
}

func (t *Typing) animate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for frame := 0; ; frame = (frame + 1) % 4 {
		fmt.Fprintf(t.out, "\r%s%s   ", t.message, strings.Repeat(".", frame))
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Typewrite prints s one rune at a time followed by a newline.
func Typewrite(out io.Writer, s string, delay time.Duration) {
	for _, r := range s {
		fmt.Fprint(out, string(r))
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	fmt.Fprintln(out)
}
