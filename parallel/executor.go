// Package parallel implements the engine's fan-out primitive. The original
// system runs isolated worker processes so a crashing computation can't
// corrupt a shared in-memory columnar runtime; Go's heap and garbage
// collector don't carry that risk, so this is a bounded goroutine worker
// pool instead. Tasks are plain closures: nothing is serialized and no
// receiver is rebuilt per task, so tasks may share pointers (the dataset
// package's tasks share its *Base, whose validation cache is mutex-guarded).
package parallel

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Executor bounds how many tasks run concurrently.
type Executor struct {
	NumWorkers int
	Logger     *zap.SugaredLogger

	sem *semaphore.Weighted
}

type Option func(*Executor)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Executor) { e.Logger = l }
}

// New returns an Executor bounded to numWorkers concurrent tasks. numWorkers
// <= 0 is treated as 1.
func New(numWorkers int, opts ...Option) *Executor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	e := &Executor{
		NumWorkers: numWorkers,
		Logger:     zap.NewNop().Sugar(),
		sem:        semaphore.NewWeighted(int64(numWorkers)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProgressFunc is invoked after each task completes (success or recovered
// failure) with the count done so far and the total task count.
type ProgressFunc func(done, total int)

// OnErrorFunc lets a caller substitute a result for a failed task instead of
// aborting the whole Map. It receives the original argument, its index, and
// the error; returning ok=false aborts the Map with that error.
type OnErrorFunc[A, R any] func(arg A, index int, err error) (substitute R, ok bool)

// Map runs fn over every element of args, preserving input order in the
// returned slice, bounded to e.NumWorkers concurrent goroutines. If fn
// returns an error for some argument and onError is nil, Map still runs
// every remaining task and, once all have finished, returns the first error
// it recorded. If onError is non-nil, it is consulted first; when it returns
// ok=false, the error is handled the same way.
func Map[A, R any](ctx context.Context, e *Executor, args []A, fn func(context.Context, A) (R, error), onError OnErrorFunc[A, R], progress ProgressFunc) ([]R, error) {
	results := make([]R, len(args))
	if len(args) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	for i, arg := range args {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(i int, arg A) {
			defer wg.Done()
			defer e.sem.Release(1)

			r, err := fn(ctx, arg)
			if err != nil {
				if onError != nil {
					sub, ok := onError(arg, i, err)
					if ok {
						r = sub
						err = nil
					}
				}
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			results[i] = r
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil {
				progress(n, len(args))
			}
		}(i, arg)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// ChunkApply partitions args into chunks of chunkSize (the last chunk may be
// smaller) and runs fn once per chunk, bounded to e.NumWorkers concurrent
// goroutines. Each chunk's output rows are concatenated back in input-chunk
// order.
func ChunkApply[A, R any](ctx context.Context, e *Executor, args []A, chunkSize int, fn func(context.Context, []A) ([]R, error)) ([]R, error) {
	if chunkSize <= 0 {
		chunkSize = len(args)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	chunks := ChunkList(args, chunkSize)
	chunkResults, err := Map[[]A, []R](ctx, e, chunks, fn, nil, nil)
	if err != nil {
		return nil, err
	}

	var out []R
	for _, cr := range chunkResults {
		out = append(out, cr...)
	}
	return out, nil
}

// ChunkList splits items into consecutive chunks of at most size elements.
func ChunkList[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
		if size == 0 {
			return nil
		}
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
