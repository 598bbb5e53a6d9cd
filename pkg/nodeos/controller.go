package nodeos

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/tomb.v2"

	"github.com/qnos-dev/qnos/pkg/executor"
	"github.com/qnos-dev/qnos/pkg/qlink"
)

// ErrClosed reports a message submitted to a stopped controller.
var ErrClosed = errors.New("controller closed")

// Controller owns one executor and processes messages on a single
// worker goroutine. Messages are handled strictly in submission order;
// link-layer responses are interleaved only at the executor's
// suspension points, so instruction execution stays single-threaded.
type Controller struct {
	exec *executor.Executor
	log  *zap.Logger

	queue     chan envelope
	responses chan qlink.Response

	tomb tomb.Tomb
}

// NewController starts a controller for the given executor.
func NewController(exec *executor.Executor, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		exec:      exec,
		log:       log.Named("nodeos").With(zap.String("node", exec.Name())),
		queue:     make(chan envelope, 64),
		responses: make(chan qlink.Response, 64),
	}

	// run worker
	c.tomb.Go(c.worker)

	return c
}

// Submit queues a message and returns a channel that reports its
// outcome once the worker has handled it.
func (c *Controller) Submit(msg Message) <-chan error {
	done := make(chan error, 1)
	if !c.tomb.Alive() {
		done <- ErrClosed
		return done
	}
	select {
	case c.queue <- envelope{msg: msg, done: done}:
		// The worker may have finished its shutdown drain between the
		// liveness check and the send, leaving the queue without a
		// reader. Answer one queued message on its behalf so no
		// submitter is left hanging.
		select {
		case <-c.tomb.Dying():
			select {
			case env := <-c.queue:
				env.done <- ErrClosed
			default:
			}
		default:
		}
	case <-c.tomb.Dying():
		done <- ErrClosed
	}
	return done
}

// Execute submits a message and waits for its outcome.
func (c *Controller) Execute(msg Message) error {
	return <-c.Submit(msg)
}

// DeliverEPRResponse feeds a link-layer response into the worker. Safe
// to call from network goroutines.
func (c *Controller) DeliverEPRResponse(resp qlink.Response) {
	select {
	case c.responses <- resp:
	case <-c.tomb.Dying():
	}
}

// Close stops the controller and waits for the worker to exit.
func (c *Controller) Close() {
	c.tomb.Kill(nil)
	_ = c.tomb.Wait()
}

func (c *Controller) worker() error {
	for {
		select {
		case env := <-c.queue:
			c.log.Debug("handling message", zap.String("msg", env.msg.String()))
			env.done <- c.handle(env.msg)
		case resp := <-c.responses:
			if err := c.exec.HandleEPRResponse(resp); err != nil {
				c.log.Error("response handling failed", zap.Error(err))
			}
		case <-c.tomb.Dying():
			// Answer queued messages so submitters do not hang.
			for {
				select {
				case env := <-c.queue:
					env.done <- ErrClosed
				default:
					return tomb.ErrDying
				}
			}
		}
	}
}

func (c *Controller) handle(msg Message) error {
	switch m := msg.(type) {
	case InitNewApp:
		return c.exec.InitNewApplication(m.AppID, m.MaxQubits)
	case OpenEPRSocket:
		return c.exec.SetupEPRSocket(m.EPRSocketID, m.RemoteNodeID, m.RemoteEPRSocketID)
	case RunSubroutine:
		return c.runSubroutine(c.exec.ExecuteSubroutine(m.Subroutine))
	case StopApp:
		return c.drive(c.exec.StopApplication(m.AppID))
	}
	return errors.Errorf("unknown message %T", msg)
}

// runSubroutine drives a run to completion. While the run is suspended
// the worker waits for link-layer responses, which are the only events
// that can make wait instructions progress.
func (c *Controller) runSubroutine(run *executor.Run) error {
	for run.Step() {
		// Buffered responses may have become matchable, for example
		// after the run freed a qubit address.
		before := c.exec.PendingEPRResponses()
		if err := c.exec.ProcessPendingEPRResponses(); err != nil {
			run.Stop()
			return err
		}
		if c.exec.PendingEPRResponses() != before {
			continue
		}

		select {
		case resp := <-c.responses:
			if err := c.exec.HandleEPRResponse(resp); err != nil {
				run.Stop()
				return err
			}
		case <-c.tomb.Dying():
			run.Stop()
			return ErrClosed
		}
	}
	return run.Err()
}

// drive consumes a run that does not depend on network responses.
func (c *Controller) drive(run *executor.Run) error {
	return run.Consume()
}
