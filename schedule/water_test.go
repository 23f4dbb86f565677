package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWaterTimes_DivisorSteps(t *testing.T) {
	for _, step := range []int{1, 2, 3, 4, 6, 8, 12, 24} {
		times, err := BuildWaterTimes(step)
		require.NoError(t, err, "step %d", step)

		var want []int
		for h := 0; h < 24; h++ {
			if h%step == 0 {
				want = append(want, h)
			}
		}
		assert.Equal(t, want, times, "step %d", step)
	}
}

func TestBuildWaterTimes_Edges(t *testing.T) {
	times, err := BuildWaterTimes(5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5, 10, 15, 20}, times)

	times, err = BuildWaterTimes(48)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, times)

	_, err = BuildWaterTimes(0)
	assert.Error(t, err)
	_, err = BuildWaterTimes(-3)
	assert.Error(t, err)
}
