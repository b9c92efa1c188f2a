package saga

import (
	"context"
	"time"

	"github.com/shopagent/cartwright/pkg/events"
)

// runStage executes fn under the stage's configured deadline. Stage
// functions append their own success events; on failure a
// StageEvent{ok:false} carrying the reason is appended here before the
// error propagates, so every failed run still ends with a terminal event.
func runStage(ctx context.Context, rc *runContext, event string, fn func(context.Context) error) error {
	sctx := ctx
	if secs := rc.cfg.TimeoutFor(event); secs > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, time.Duration(secs*float64(time.Second)))
		defer cancel()
	}

	t0 := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn(sctx) }()

	var err error
	select {
	case err = <-done:
	case <-sctx.Done():
		// The stage goroutine may still be draining a stuck provider
		// call; the buffered channel lets it exit without leaking.
		err = sctx.Err()
	}
	if err == nil {
		return nil
	}

	serr := classify(err, event)
	rc.recorder.Stage(events.StageEvent{
		Stage: event,
		DtS:   round4(time.Since(t0).Seconds()),
		OK:    false,
		Annotations: map[string]any{
			"reason": serr.reason(),
			"kind":   string(serr.Kind),
		},
	})
	return serr
}
