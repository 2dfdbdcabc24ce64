package markov

import (
	"context"
	"log/slog"
)

// WalkStream runs a walk in its own goroutine and returns a read-only
// channel of its tokens. This is useful for handing generation to a
// consumer that paces itself. The channel is closed once the walk ends or
// the context is cancelled. A consumer that stops reading early must cancel
// ctx, otherwise the goroutine stays blocked on its next send.
func (c *Chain) WalkStream(ctx context.Context, from []Token, dir Direction) <-chan Token {
	tokenChan := make(chan Token)
	w := c.Walker(from, dir)

	go func() {
		defer close(tokenChan)
		for {
			select {
			case <-ctx.Done():
				c.log().DebugContext(ctx, "Walk stream cancelled by context",
					slog.String("direction", dir.String()),
					slog.Int("steps", w.Steps()),
				)
				return
			default:
			}

			tok, ok := w.Next()
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case tokenChan <- tok:
			}
		}
	}()

	return tokenChan
}
