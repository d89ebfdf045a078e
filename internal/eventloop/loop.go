// Package eventloop provides the single logical thread on which all
// preference writes, listener notifications and controller transitions run.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrStopped is returned by Do after Close.
var ErrStopped = errors.New("event loop stopped")

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Loop runs submitted functions one at a time, in submission order, on a
// single goroutine.
type Loop struct {
	tasks chan task
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// New starts a loop. queue bounds the number of waiting submissions.
func New(queue int) *Loop {
	l := &Loop{
		tasks: make(chan task, queue),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case t := <-l.tasks:
			t.done <- l.exec(t)
		case <-l.quit:
			// Drain what was accepted before Close.
			for {
				select {
				case t := <-l.tasks:
					t.done <- l.exec(t)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) exec(t task) (err error) {
	if err := t.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event loop task panicked: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

// Do runs fn on the loop and waits for it. If ctx ends before fn starts, fn
// does not run; if ctx ends while fn runs, Do still waits for fn to return.
// Do must not be called from inside a task.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-l.quit:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- t:
	case <-l.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-l.done:
		select {
		case err := <-t.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// Close stops accepting work, runs what was already queued and waits for the
// loop goroutine to exit. Safe to call more than once.
func (l *Loop) Close() error {
	l.once.Do(func() { close(l.quit) })
	<-l.done
	return nil
}
