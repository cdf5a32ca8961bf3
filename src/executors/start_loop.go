package executors

import (
	"context"

	"cryptoagents/src/bus"
	"cryptoagents/src/model"
)

// StartLoop executes approved signals one at a time until ctx ends or the
// channel closes. Per-signal failures are already captured by Execute.
func (e *Executor) StartLoop(ctx context.Context, signals <-chan model.Signal) error {
	e.log.Info("executor listening for approved signals")

	for {
		select {
		case <-ctx.Done():
			e.log.Println("loop stopped")
			return nil
		case signal, ok := <-signals:
			if !ok {
				return bus.ErrSubscriptionClosed
			}
			_, _ = e.Execute(ctx, signal)
		}
	}
}
