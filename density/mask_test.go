package density

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowDensityMask(t *testing.T) {
	counts := bandFrom([][]int32{{1, 5, CountNoData}, {0, 4, 6}}, 2, 2)
	fill := LowDensityMask(counts, 5)

	buf := make([]uint8, 6)
	require.NoError(t, fill(Window{0, 0, 3, 2}, buf))
	assert.Equal(t, []uint8{1, 0, 0, 1, 1, 0}, buf)

	// 缓冲区复用时旧值须被覆盖
	require.NoError(t, fill(Window{1, 0, 2, 1}, buf))
	assert.Equal(t, []uint8{0, 0}, buf[:2])

	assert.ErrorIs(t, fill(Window{0, 0, 3, 2}, make([]uint8, 2)), ErrBufferSize)
	assert.ErrorIs(t, fill(Window{2, 0, 2, 2}, buf), ErrWindowOutOfRange)
}

func TestLowDensityMaskLargeMinimum(t *testing.T) {
	counts := bandFrom([][]int32{{1, 5, CountNoData}, {0, 4, 6}}, 2, 2)
	buf := make([]uint8, 6)
	require.NoError(t, LowDensityMask(counts, 1<<32)(Window{0, 0, 3, 2}, buf))
	assert.Equal(t, []uint8{1, 1, 0, 1, 1, 1}, buf)
}
