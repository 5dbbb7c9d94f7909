package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiway/resonate/pkg/config"
)

// ErrStopped is returned when submitting to a stopped queue.
var ErrStopped = errors.New("queue stopped")

// Result is the outcome of one rendered job.
type Result struct {
	Seq         int           `json:"-"`
	Job         *config.Job   `json:"job"`
	Output      string        `json:"output,omitempty"`
	SampleCount int           `json:"sample_count"`
	Elapsed     time.Duration `json:"elapsed"`
	Err         error         `json:"-"`
}

// RenderFunc renders a single job.
type RenderFunc func(ctx context.Context, job *config.Job) Result

type item struct {
	seq int
	ctx context.Context
	job *config.Job
}

// Queue renders jobs on a fixed number of workers fed by a bounded channel.
type Queue struct {
	render   RenderFunc
	log      zerolog.Logger
	itemChan chan item
	results  chan Result
	seq      atomic.Int64
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// New creates a queue and starts its workers.
func New(render RenderFunc, workers, length int, log zerolog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if length < 0 {
		length = 0
	}
	q := &Queue{
		render:   render,
		log:      log.With().Str("component", "queue").Logger(),
		itemChan: make(chan item, length),
		results:  make(chan Result, workers),
		stopChan: make(chan struct{}),
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.run(i)
	}
	return q
}

// Results delivers one Result per accepted job.
func (q *Queue) Results() <-chan Result {
	return q.results
}

// Submit blocks until the job is accepted, ctx is done or the queue stops.
func (q *Queue) Submit(ctx context.Context, job *config.Job) error {
	select {
	case <-q.stopChan:
		return ErrStopped
	default:
	}

	it := item{ctx: ctx, job: job}
	it.seq = int(q.seq.Add(1) - 1)
	select {
	case q.itemChan <- it:
		q.log.Trace().Str("job", job.ID).Int("seq", it.seq).Msg("Job added to queue")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopChan:
		return ErrStopped
	}
}

// TryAdd queues a job without blocking and reports whether it was accepted.
func (q *Queue) TryAdd(ctx context.Context, job *config.Job) bool {
	select {
	case <-q.stopChan:
		return false
	default:
	}

	it := item{ctx: ctx, job: job}
	it.seq = int(q.seq.Add(1) - 1)
	select {
	case q.itemChan <- it:
		q.log.Trace().Str("job", job.ID).Msg("Job added to queue")
		return true
	default:
		q.log.Debug().Str("job", job.ID).Msg("Queue full, dropping job")
		return false
	}
}

// Stop signals the workers to exit and waits for them.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.log.Debug().Msg("Stopping queue")
		close(q.stopChan)
	})
	q.wg.Wait()
}

// run processes queued jobs.
func (q *Queue) run(worker int) {
	defer q.wg.Done()
	log := q.log.With().Int("worker", worker).Logger()
	log.Debug().Msg("Queue worker started")
	defer log.Debug().Msg("Queue worker stopped")

	for {
		select {
		case <-q.stopChan:
			return
		case it := <-q.itemChan:
			log.Trace().Str("job", it.job.ID).Str("kind", it.job.Kind).Msg("Rendering queued job")

			start := time.Now()
			res := q.render(it.ctx, it.job)
			res.Seq = it.seq
			res.Job = it.job
			res.Elapsed = time.Since(start)
			if res.Err != nil {
				log.Error().Err(res.Err).Str("job", it.job.ID).Msg("Failed to render job")
			}

			select {
			case q.results <- res:
			case <-q.stopChan:
				return
			}
		}
	}
}

// RenderAll renders jobs on the given number of workers and returns the
// results in submission order.
func RenderAll(ctx context.Context, render RenderFunc, workers int, jobs []*config.Job, log zerolog.Logger) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	q := New(render, workers, len(jobs), log)
	defer q.Stop()

	submitted := 0
	for i, job := range jobs {
		if err := q.Submit(ctx, job); err != nil {
			results[i] = Result{Seq: i, Job: job, Err: err}
			continue
		}
		submitted++
	}
	for i := 0; i < submitted; i++ {
		res := <-q.Results()
		results[res.Seq] = res
	}
	return results
}
