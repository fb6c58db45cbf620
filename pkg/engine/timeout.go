package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/tokamak/pkg/reactor"
)

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrSuperseded is returned when a newer Evaluate call started before this
// one finished.
var ErrSuperseded = errors.New("engine: evaluation superseded by newer request")

// ErrTimeout is returned when an evaluation runs past EvalTimeout.
var ErrTimeout = errors.New("engine: evaluation timed out")

type evalResult struct {
	reactor *reactor.Reactor
	errors  []EvalError
	err     error
}

// waitWithTimeout waits for a result from ch, but returns ErrTimeout if
// the evaluation exceeds EvalTimeout. Results from evaluations that were
// overtaken by a newer generation are discarded.
//
// On timeout the goroutine may still be running; its result lands in the
// buffered channel and is dropped.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*reactor.Reactor, []EvalError, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			Logger().Debug("discarding stale evaluation", "generation", gen, "current", current)
			return nil, nil, ErrSuperseded
		}
		return res.reactor, res.errors, res.err

	case <-timer.C:
		Logger().Warn("evaluation timed out", "generation", gen, "timeout", EvalTimeout)
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, EvalTimeout)
	}
}
