package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeground(t *testing.T) {
	scores := []float32{
		0.7, 0.1, 0.2,
		0.05, 0.9, 0.05,
	}

	fg, err := Foreground(scores, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.9, 0.05}, fg)

	single, err := Foreground([]float32{0.4, 0.6}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6}, single)

	empty, err := Foreground(nil, 0, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = Foreground(scores, 3, 3)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestBestClasses(t *testing.T) {
	scores := []float32{
		0.8, 0.1, 0.1, // background
		0.1, 0.2, 0.7,
		0.3, 0.3, 0.3, // tie resolves to the lowest index
	}

	best, err := BestClasses(scores, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 0}, best)

	one, err := BestClasses([]float32{0.2, 0.8}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, one)

	_, err = BestClasses(scores, 3, 1)
	assert.Error(t, err)
}
