// Package mock provides an in-memory implementation of [audio.Source] for use
// in unit tests.
//
// Source is safe for concurrent use. It records every method call so that
// tests can assert on call counts, and exposes exported fields that control
// what Start pushes and returns.
//
// Typical usage:
//
//	src := &mock.Source{Frames: frames, CloseQueue: true}
//	q := audio.NewQueue()
//	if err := src.Start(ctx, q); err != nil { ... }
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/livecaptions/pkg/audio"
)

// Source is a mock implementation of [audio.Source]. Set the exported fields
// before calling Start; inspect the call counters afterwards.
type Source struct {
	mu sync.Mutex

	// Frames are pushed into the queue, in order, by Start.
	Frames []audio.Frame

	// Interval, when positive, makes Start push frames from a goroutine with
	// this delay between consecutive frames. When zero every frame is pushed
	// synchronously before Start returns.
	Interval time.Duration

	// CloseQueue closes the queue once every frame has been pushed.
	CloseQueue bool

	// StartErr is returned by Start. When set, no frames are pushed.
	StartErr error

	// CloseErr is returned by Close.
	CloseErr error

	// StartCallCount is the number of times Start was called.
	StartCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	done chan struct{}
}

// Start implements [audio.Source].
func (s *Source) Start(ctx context.Context, q *audio.Queue) error {
	s.mu.Lock()
	s.StartCallCount++
	if s.StartErr != nil {
		s.mu.Unlock()
		return s.StartErr
	}
	frames := append([]audio.Frame(nil), s.Frames...)
	interval := s.Interval
	closeQueue := s.CloseQueue
	if s.done == nil {
		s.done = make(chan struct{})
	}
	done := s.done
	s.mu.Unlock()

	if interval <= 0 {
		for _, f := range frames {
			q.Push(f)
		}
		if closeQueue {
			q.Close()
		}
		return nil
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for _, f := range frames {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-t.C:
				q.Push(f)
			}
		}
		if closeQueue {
			q.Close()
		}
	}()
	return nil
}

// Close implements [audio.Source]. It stops a paced Start goroutine.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	return s.CloseErr
}

// ResetCalls clears all recorded call counters. Thread-safe.
func (s *Source) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCallCount = 0
	s.CloseCallCount = 0
}

var _ audio.Source = (*Source)(nil)
