package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"feed-relay/internal/usecase/deliver"
)

// Stdout prints each message on its own line. It never fails unless the
// writer does, which makes it the safe default for local runs.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

var _ deliver.Publisher = (*Stdout)(nil)

// NewStdout returns a publisher writing to w, or to os.Stdout when w is nil.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

// Name implements deliver.Publisher.
func (s *Stdout) Name() string { return "stdout" }

// Publish implements deliver.Publisher.
func (s *Stdout) Publish(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.w, text); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
