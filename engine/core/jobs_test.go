package core

import (
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobSystemRejectsBadSizes(t *testing.T) {
	_, err := NewJobSystem(0, 1, NewDiscardLogger())
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1, NewDiscardLogger())
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(4, 8, NewDiscardLogger())
	require.NoError(t, err)

	var completed, failed atomic.Int32
	for i := 0; i < 20; i++ {
		fail := i%5 == 0
		js.Submit(JobTask{
			Run: func() error {
				if fail {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure:  func(error) { failed.Add(1) },
		})
	}
	js.Wait()

	assert.Equal(t, int32(16), completed.Load())
	assert.Equal(t, int32(4), failed.Load())
	require.NoError(t, js.Shutdown())
}
