package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnt/memescore/internal/orchestrator"
)

type fakeBatch struct {
	calls  int
	report orchestrator.Report
	err    error
}

func (f *fakeBatch) RecomputeAll(ctx context.Context) (orchestrator.Report, error) {
	f.calls++
	return f.report, f.err
}

type fakeLister []uint

func (f fakeLister) ListIDs(ctx context.Context) ([]uint, error) {
	return f, nil
}

type fakeQueue struct {
	pushed []uint
}

func (f *fakeQueue) PushCreators(ctx context.Context, ids []uint) error {
	f.pushed = append(f.pushed, ids...)
	return nil
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New("every tuesday", &fakeBatch{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New("0 0 * * * *", &fakeBatch{}, zerolog.Nop())
	assert.Error(t, err, "six-field specs are not accepted")
}

func TestRunOnceRecomputesInProcess(t *testing.T) {
	batch := &fakeBatch{report: orchestrator.Report{Succeeded: []uint{1, 2}}}
	s, err := New("*/15 * * * *", batch, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, batch.calls)
	assert.False(t, s.LastRun().IsZero())
}

func TestRunOnceEnqueuesWhenQueueConfigured(t *testing.T) {
	batch := &fakeBatch{}
	q := &fakeQueue{}
	s, err := New("@hourly", batch, zerolog.Nop(), WithQueue(fakeLister{3, 1, 2}, q))
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, batch.calls)
	assert.Equal(t, []uint{3, 1, 2}, q.pushed)
}

func TestRunOncePropagatesListFailure(t *testing.T) {
	batch := &fakeBatch{err: errors.New("db down")}
	s, err := New("@hourly", batch, zerolog.Nop())
	require.NoError(t, err)

	assert.EqualError(t, s.RunOnce(context.Background()), "db down")
}

func TestStartStop(t *testing.T) {
	s, err := New("@daily", &fakeBatch{}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	s.Stop()
}
