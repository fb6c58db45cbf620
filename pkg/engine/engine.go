// Package engine evaluates reactor descriptions written in a small Lisp.
// It wraps zygomys in a sandboxed environment and produces a
// reactor.Reactor from user source code.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/tokamak/pkg/kernel"
	"github.com/chazu/tokamak/pkg/reactor"
)

// DefaultReactorName names the reactor when the source does not call
// (reactor "name").
const DefaultReactorName = "reactor"

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code, or a shape that
// could not be assembled.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment, so the
// same source always yields the same reactor.
type Engine struct {
	k    kernel.Kernel
	opts []reactor.Option

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates an Engine whose shapes are built with k. opts are
// passed to every reactor it produces.
func NewEngine(k kernel.Kernel, opts ...reactor.Option) *Engine {
	return &Engine{k: k, opts: opts}
}

// Evaluate takes Lisp source code and produces a new reactor. Shapes are
// described, not built; call Build or Solids on the result.
//
// Return semantics:
//   - On success: returns reactor + nil errors + nil error
//   - On parse/eval failure: returns nil reactor + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*reactor.Reactor, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		r, evalErrs, err := e.evaluate(source)
		ch <- evalResult{reactor: r, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

func (e *Engine) evaluate(source string) (*reactor.Reactor, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return reactor.New(DefaultReactorName, e.opts...), nil, nil
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	sc := newScript(e.k)
	registerBuiltins(env, sc)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		evalErrs := parseZygomysError(err)
		if sc.failed != nil {
			evalErrs[0].Message = sc.failed.Error()
		}
		return nil, evalErrs, nil
	}

	r, errs := sc.assemble(e.opts...)
	if len(errs) > 0 {
		return nil, errs, nil
	}
	Logger().Info("reactor described",
		"reactor", r.Name(),
		"members", r.Len(),
		"shapes", len(sc.order),
	)
	return r, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError
// values, pulling out the line number when the message has one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
