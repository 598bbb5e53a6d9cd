package executor

import "iter"

// Yielder is handed to anything that may block inside the interpreter:
// backend gate hooks and wait-instruction polls. Calling Yield suspends
// the surrounding Run so its driver regains control; execution resumes
// in place on the next Step.
type Yielder interface {
	Yield()
}

// stopSignal unwinds a suspended run when its driver abandons it.
type stopSignal struct{}

type pauser struct {
	emit func(struct{}) bool
}

func (p *pauser) Yield() {
	if !p.emit(struct{}{}) {
		panic(stopSignal{})
	}
}

// noYield is used where the caller owns the thread of control and there
// is no driver to hand back to, such as network responses handled
// outside a running subroutine.
type noYield struct{}

func (noYield) Yield() {}

// Run is a resumable execution. It advances only when the driver calls
// Step, so suspension points are deterministic handoffs rather than
// scheduler races.
type Run struct {
	next     func() (struct{}, bool)
	stop     func()
	err      error
	finished bool
}

// newRun starts fn suspended before its first instruction.
func newRun(fn func(Yielder) error) *Run {
	r := &Run{}
	seq := func(emit func(struct{}) bool) {
		defer func() {
			if v := recover(); v != nil {
				if _, ok := v.(stopSignal); ok {
					return
				}
				panic(v)
			}
		}()
		r.err = fn(&pauser{emit: emit})
	}
	r.next, r.stop = iter.Pull(seq)
	return r
}

// Step resumes the run until its next suspension point. It returns false
// once the run has finished, after which Err holds the outcome.
func (r *Run) Step() bool {
	if r.finished {
		return false
	}
	_, more := r.next()
	if !more {
		r.finished = true
	}
	return more
}

// Finished reports whether the run has completed.
func (r *Run) Finished() bool { return r.finished }

// Err returns the run's outcome. Only meaningful once Finished.
func (r *Run) Err() error { return r.err }

// Consume drives the run to completion and returns its outcome.
func (r *Run) Consume() error {
	for r.Step() {
	}
	return r.err
}

// Stop abandons a suspended run. The run unwinds without executing
// further instructions; its error is discarded.
func (r *Run) Stop() {
	r.stop()
	r.finished = true
}
