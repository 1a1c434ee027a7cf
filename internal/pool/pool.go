package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
)

// Job is one independent unit of work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Failure struct {
	Name string
	Err  error
}

// Report summarises a batch. Failures are sorted by name.
type Report struct {
	Total    int
	Failures []Failure
}

func (r Report) Succeeded() int { return r.Total - len(r.Failures) }

func (r Report) OK() bool { return len(r.Failures) == 0 }

// Merge combines two reports.
func (r Report) Merge(other Report) Report {
	out := Report{Total: r.Total + other.Total}
	out.Failures = append(append(out.Failures, r.Failures...), other.Failures...)
	sortFailures(out.Failures)
	return out
}

// Err joins every failure, or returns nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Name, f.Err))
	}
	return errors.Join(errs...)
}

func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d succeeded", r.Succeeded(), r.Total)
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Name, f.Err)
	}
	return b.String()
}

// Pool runs jobs on a fixed number of workers.
type Pool struct {
	size     int
	progress io.Writer
}

type Option func(*Pool)

// WithProgress draws a progress bar on w. A nil writer disables it.
func WithProgress(w io.Writer) Option {
	return func(p *Pool) { p.progress = w }
}

// New returns a pool of size workers; size <= 0 means one per CPU.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{size: size, progress: os.Stderr}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Size() int { return p.size }

// Run executes every job and waits for all of them. A failing job does not
// stop the others. Jobs not yet started when ctx is cancelled fail with the
// context error.
func (p *Pool) Run(ctx context.Context, description string, jobs []Job) Report {
	report := Report{Total: len(jobs)}
	if len(jobs) == 0 {
		return report
	}

	var bar *progressbar.ProgressBar
	if p.progress != nil {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetWriter(p.progress),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var mu sync.Mutex
	wp := workerpool.New(p.size)
	for _, job := range jobs {
		job := job
		wp.Submit(func() {
			err := ctx.Err()
			if err == nil {
				err = runSafely(ctx, job)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, Failure{Name: job.Name, Err: err})
			}
			if bar != nil {
				bar.Add(1)
			}
		})
	}
	wp.StopWait()

	if bar != nil {
		bar.Finish()
	}
	sortFailures(report.Failures)
	return report
}

func runSafely(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx)
}

func sortFailures(f []Failure) {
	sort.SliceStable(f, func(i, j int) bool { return f[i].Name < f[j].Name })
}
