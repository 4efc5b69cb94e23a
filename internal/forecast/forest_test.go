package forecast

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData() ([][]float64, []float64) {
	var x [][]float64
	var y []float64
	for i := range 40 {
		x = append(x, []float64{float64(i), 1})
		if i < 20 {
			y = append(y, 10)
		} else {
			y = append(y, 90)
		}
	}
	return x, y
}

func TestFitForest_LearnsStep(t *testing.T) {
	x, y := stepData()
	forest, err := FitForest(context.Background(), x, y, ForestParams{Trees: 15, MaxDepth: 4, Seed: 42})
	require.NoError(t, err)
	require.Len(t, forest.Trees, 15)

	assert.InDelta(t, 10, forest.Predict([]float64{2, 1}), 1e-9)
	assert.InDelta(t, 90, forest.Predict([]float64{37, 1}), 1e-9)
}

func TestFitForest_DeterministicForSeed(t *testing.T) {
	x, y := stepData()
	params := ForestParams{Trees: 8, MaxDepth: 6, Seed: 42}

	a, err := FitForest(context.Background(), x, y, params)
	require.NoError(t, err)
	b, err := FitForest(context.Background(), x, y, params)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(a, b))
}

func TestFitForest_RespectsMaxDepth(t *testing.T) {
	x, y := stepData()
	for i := range y {
		y[i] = float64(i * i)
	}
	forest, err := FitForest(context.Background(), x, y, ForestParams{Trees: 3, MaxDepth: 2, Seed: 1})
	require.NoError(t, err)
	for _, tree := range forest.Trees {
		// A depth-2 binary tree has at most 7 nodes.
		assert.LessOrEqual(t, len(tree.Nodes), 7)
	}
}

func TestFitForest_ConstantTarget(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	y := []float64{5, 5, 5}
	forest, err := FitForest(context.Background(), x, y, ForestParams{Trees: 2, MaxDepth: 10})
	require.NoError(t, err)
	for _, tree := range forest.Trees {
		assert.Len(t, tree.Nodes, 1)
	}
	assert.Equal(t, 5.0, forest.Predict([]float64{100}))
}

func TestFitForest_Errors(t *testing.T) {
	_, err := FitForest(context.Background(), nil, nil, DefaultForestParams())
	require.ErrorIs(t, err, errEmptyTrainingSet)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x, y := stepData()
	_, err = FitForest(ctx, x, y, DefaultForestParams())
	require.ErrorIs(t, err, context.Canceled)
}

func TestScaler(t *testing.T) {
	s := FitScaler([][]float64{{1, 7}, {3, 7}})
	assert.Equal(t, []float64{2, 7}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Scale)
	assert.Equal(t, []float64{-1, 0}, s.Transform([]float64{1, 7}))
	assert.Equal(t, Scaler{}, FitScaler(nil))
}
