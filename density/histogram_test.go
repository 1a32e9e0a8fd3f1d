package density

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHistogram(t *testing.T) {
	counts := bandFrom(scenario, 2, 2)
	h, err := BuildHistogram(counts, 9)
	require.NoError(t, err)
	want := Histogram{
		{0, 0}, {1, 2}, {2, 0}, {3, 0}, {4, 0},
		{5, 6}, {6, 2}, {7, 1}, {8, 0}, {9, 1},
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("histogram mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(12), h.Total())
	assert.Equal(t, int64(2), h.Below(5))
	assert.Equal(t, int64(0), h.Below(1))
	assert.Equal(t, int64(12), h.Below(100))
	assert.Equal(t, 9, h.Max())
}

func TestBuildHistogramSkipsNoData(t *testing.T) {
	counts := bandFrom([][]int32{{0, CountNoData}, {0, 0}}, 1, 2)
	h, err := BuildHistogram(counts, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(Histogram{{0, 3}}, h); diff != "" {
		t.Errorf("histogram mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, h.Max())
}

func TestHistogramEmpty(t *testing.T) {
	var h Histogram
	assert.Zero(t, h.Total())
	assert.Zero(t, h.Max())
}
