package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_IsolatesFailures(t *testing.T) {
	var ran atomic.Int32
	jobs := make([]Job, 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		jobs = append(jobs, Job{
			Name: fmt.Sprintf("scene-%02d", i),
			Run: func(context.Context) error {
				ran.Add(1)
				if i%3 == 0 {
					return errors.New("rio exited 1")
				}
				return nil
			},
		})
	}

	report := New(3, WithProgress(nil)).Run(context.Background(), "test", jobs)

	assert.Equal(t, int32(10), ran.Load())
	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 6, report.Succeeded())
	require.Len(t, report.Failures, 4)
	assert.Equal(t, []string{"scene-00", "scene-03", "scene-06", "scene-09"}, names(report.Failures))
	assert.Error(t, report.Err())
	assert.Contains(t, report.String(), "6/10 succeeded")
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	jobs := make([]Job, 0, 12)
	for i := 0; i < 12; i++ {
		jobs = append(jobs, Job{
			Name: fmt.Sprint(i),
			Run: func(context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			},
		})
	}

	report := New(2, WithProgress(nil)).Run(context.Background(), "test", jobs)

	assert.True(t, report.OK())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_RecoversPanics(t *testing.T) {
	report := New(1, WithProgress(nil)).Run(context.Background(), "test", []Job{
		{Name: "boom", Run: func(context.Context) error { panic("nil band") }},
		{Name: "fine", Run: func(context.Context) error { return nil }},
	})

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "boom", report.Failures[0].Name)
	assert.Contains(t, report.Failures[0].Err.Error(), "nil band")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(2, WithProgress(nil)).Run(ctx, "test", []Job{
		{Name: "a", Run: func(context.Context) error { return nil }},
	})

	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, context.Canceled)
}

func TestNew_DefaultSize(t *testing.T) {
	assert.Positive(t, New(0).Size())
	assert.Equal(t, 4, New(4).Size())
}

func TestReport_Merge(t *testing.T) {
	a := Report{Total: 1}
	b := Report{Total: 3, Failures: []Failure{{Name: "z", Err: errors.New("x")}, {Name: "b", Err: errors.New("y")}}}

	m := a.Merge(b)
	assert.Equal(t, 4, m.Total)
	assert.Equal(t, []string{"b", "z"}, names(m.Failures))
	assert.NoError(t, Report{Total: 2}.Err())
}

func names(fs []Failure) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Name)
	}
	return out
}
