package cliserver

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/qlcli/internal/log"
	"github.com/zjrosen/qlcli/internal/tracing"
)

// Executor runs one command on the persistent worker. *Channel implements it.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (string, error)
	// Shutdown stops the worker; the next Execute starts a fresh one.
	Shutdown()
}

type result struct {
	out string
	err error
}

// Queue serializes commands onto an Executor. Commands run in submission
// order, except that Restart runs before anything not yet started.
type Queue struct {
	exec   Executor
	tracer trace.Tracer

	mu           sync.Mutex
	running      bool
	pending      []func()
	invalidators []func()
}

// NewQueue creates a Queue. tracer may be nil.
func NewQueue(exec Executor, tracer trace.Tracer) *Queue {
	return &Queue{exec: exec, tracer: tracer}
}

// OnRestart registers fn to run on every Restart, after the worker is stopped.
// Used to drop state derived from the old worker, such as the cached version.
func (q *Queue) OnRestart(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.invalidators = append(q.invalidators, fn)
}

// Len returns the number of commands waiting behind the running one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Submit runs cmd once every earlier command has finished. If ctx is done
// before the command starts, it is skipped and ctx.Err() is returned. Once
// started, the command runs to completion even if ctx is cancelled.
func (q *Queue) Submit(ctx context.Context, cmd Command) (string, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	done := make(chan result, 1)

	// Without a tracer the span belongs to the caller and is left alone.
	traced := q.tracer != nil
	spanCtx, span := tracing.StartCommand(ctx, q.tracer, tracing.ModeServer, cmd.ID, cmd.Command, cmd.Args, cmd.Description)
	if traced {
		span.AddEvent(tracing.EventQueued, trace.WithAttributes(attribute.Int(tracing.AttrQueueDepth, q.Len())))
	}

	action := func() {
		if err := ctx.Err(); err != nil {
			log.Debug(log.CatQueue, "Skipping cancelled command", "id", cmd.ID, "command", strings.Join(cmd.Command, " "))
			if traced {
				span.AddEvent(tracing.EventCancelled)
			}
			done <- result{err: err}
			return
		}
		if traced {
			span.AddEvent(tracing.EventStarted)
		}
		out, err := q.exec.Execute(spanCtx, cmd)
		done <- result{out: out, err: err}
	}

	q.schedule(action, false)

	select {
	case r := <-done:
		if traced {
			tracing.EndCommand(span, r.err)
		}
		return r.out, r.err
	case <-ctx.Done():
		if traced {
			span.AddEvent(tracing.EventCancelled)
			tracing.EndCommand(span, ctx.Err())
		}
		return "", ctx.Err()
	}
}

// RequestRestart schedules a restart without waiting for it. The restart
// stops the worker and runs the restart hooks. It runs immediately when the
// queue is idle; otherwise it goes to the front of the queue, behind only the
// running command. The returned channel is closed once it has happened.
func (q *Queue) RequestRestart() <-chan struct{} {
	done := make(chan struct{})
	action := func() {
		defer close(done)
		log.Info(log.CatQueue, "Restarting cli-server")
		if q.tracer != nil {
			_, span := q.tracer.Start(context.Background(), tracing.SpanPrefixCommand+"restart")
			span.AddEvent(tracing.EventRestart)
			defer span.End()
		}
		q.exec.Shutdown()

		q.mu.Lock()
		hooks := append([]func(){}, q.invalidators...)
		q.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	}
	q.schedule(action, true)
	return done
}

// Restart is RequestRestart, waiting until the restart has happened or ctx is
// done. The restart itself is never skipped.
func (q *Queue) Restart(ctx context.Context) error {
	select {
	case <-q.RequestRestart():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) schedule(action func(), front bool) {
	q.mu.Lock()
	if q.running {
		if front {
			q.pending = append([]func(){action}, q.pending...)
		} else {
			q.pending = append(q.pending, action)
		}
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.drain(action)
}

// drain runs action and then every pending entry until the queue is empty.
func (q *Queue) drain(action func()) {
	for {
		action()

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		action = q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
	}
}
