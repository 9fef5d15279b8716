/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("task already started")

// Func is one unit of scheduled work. It must return promptly once ctx is done.
type Func func(ctx context.Context) error

// Task runs a Func immediately and then on every interval until stopped.
// Stopping cancels the context handed to the running tick.
type Task struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fn       Func

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// New creates a task. A zero timeout lets each tick run until the task stops.
func New(name string, interval, timeout time.Duration, fn Func) *Task {
	return &Task{
		name:     name,
		interval: interval,
		timeout:  timeout,
		fn:       fn,
		doneChan: make(chan struct{}),
	}
}

func (t *Task) Name() string {
	return t.name
}

// Start launches the loop. A task runs at most once.
func (t *Task) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.pollLoop(loopCtx)

	zap.L().Debug("Scheduled task started",
		zap.String("task", t.name),
		zap.Duration("interval", t.interval))
	return nil
}

// Stop cancels the loop and waits for the running tick to return.
// Safe to call more than once, and before Start.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.started {
		t.started = true
		close(t.doneChan)
	}
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-t.doneChan
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.doneChan
}

func (t *Task) pollLoop(ctx context.Context) {
	defer close(t.doneChan)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick(ctx)

	for {
		select {
		case <-ticker.C:
			t.tick(ctx)
		case <-ctx.Done():
			zap.L().Debug("Scheduled task stopped", zap.String("task", t.name))
			return
		}
	}
}

func (t *Task) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	tickCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if err := t.fn(tickCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		zap.L().Warn("Scheduled task tick failed",
			zap.String("task", t.name),
			zap.Error(err))
	}
}

// Group stops a set of tasks together.
type Group struct {
	mu    sync.Mutex
	tasks []*Task
}

// Go creates a task, starts it, and tracks it for StopAll.
func (g *Group) Go(ctx context.Context, name string, interval, timeout time.Duration, fn Func) (*Task, error) {
	task := New(name, interval, timeout, fn)
	if err := task.Start(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.tasks = append(g.tasks, task)
	g.mu.Unlock()
	return task, nil
}

func (g *Group) StopAll() {
	g.mu.Lock()
	tasks := g.tasks
	g.tasks = nil
	g.mu.Unlock()

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			t.Stop()
		}(task)
	}
	wg.Wait()
}
