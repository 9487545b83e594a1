package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNDestroysPartialResults(t *testing.T) {
	boom := errors.New("out of semaphores")
	next := 0
	var destroyed []int
	create := func() (int, error) {
		next++
		if next == 3 {
			return 0, boom
		}
		return next, nil
	}

	out, err := createN(4, create, func(v int) { destroyed = append(destroyed, v) })
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Equal(t, []int{2, 1}, destroyed)
}

func TestCreateNKeepsEverythingOnSuccess(t *testing.T) {
	next := 0
	destroyed := 0
	out, err := createN(3, func() (int, error) { next++; return next, nil }, func(int) { destroyed++ })
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)
	assert.Zero(t, destroyed)
}
