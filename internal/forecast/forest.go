package forecast

import (
	"context"
	"errors"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ForestParams configures random forest training.
type ForestParams struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	Seed            uint64
}

// DefaultForestParams returns 100 trees of depth at most 10, seeded with 42.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MaxDepth: 10, MinSamplesSplit: 2, Seed: 42}
}

// Forest is an ensemble of bootstrapped regression trees. Predictions are the
// mean of the member trees.
type Forest struct {
	Trees []Tree `msgpack:"trees"`
}

// Tree is a CART regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node `msgpack:"nodes"`
}

// Node is a split when Left >= 0, otherwise a leaf carrying Value.
type Node struct {
	Feature   int     `msgpack:"f"`
	Threshold float64 `msgpack:"t"`
	Left      int32   `msgpack:"l"`
	Right     int32   `msgpack:"r"`
	Value     float64 `msgpack:"v"`
}

var errEmptyTrainingSet = errors.New("empty training set")

// FitForest trains a forest on x and y. Trees are fitted concurrently; each
// tree draws its bootstrap sample from its own generator derived from
// params.Seed, so the result is deterministic for a given seed.
func FitForest(ctx context.Context, x [][]float64, y []float64, params ForestParams) (Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return Forest{}, errEmptyTrainingSet
	}
	if params.Trees <= 0 {
		params.Trees = 1
	}
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}

	seeder := rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15))
	seeds := make([]uint64, params.Trees)
	for i := range seeds {
		seeds[i] = seeder.Uint64()
	}

	trees := make([]Tree, params.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
			sample := make([]int, len(x))
			for k := range sample {
				sample[k] = rng.IntN(len(x))
			}
			b := treeBuilder{x: x, y: y, maxDepth: params.MaxDepth, minSplit: params.MinSamplesSplit}
			b.build(sample, 0)
			trees[i] = Tree{Nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Forest{}, err
	}
	return Forest{Trees: trees}, nil
}

// Predict averages the tree outputs for a standardized feature row.
func (f Forest) Predict(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.Trees))
}

// Predict walks the tree to a leaf.
func (t Tree) Predict(row []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := int32(0)
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x        [][]float64
	y        []float64
	maxDepth int
	minSplit int
	nodes    []Node
}

// build appends the subtree for the given sample indices and returns its
// node index.
func (b *treeBuilder) build(idx []int, depth int) int32 {
	self := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: b.mean(idx)})

	if depth >= b.maxDepth || len(idx) < b.minSplit || b.pure(idx) {
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].Feature = feature
	b.nodes[self].Threshold = threshold
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// bestSplit finds the feature and threshold that minimize the summed squared
// error of the two children, equivalently maximizing sumL²/nL + sumR²/nR.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}
	parentScore := total * total / float64(n)

	bestScore := parentScore
	bestFeature, bestThreshold, found := 0, 0.0, false

	sorted := make([]int, n)
	for f := range b.x[idx[0]] {
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, c int) int {
			switch va, vc := b.x[a][f], b.x[c][f]; {
			case va < vc:
				return -1
			case va > vc:
				return 1
			default:
				return 0
			}
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.y[sorted[k-1]]
			lo, hi := b.x[sorted[k-1]][f], b.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			if score > bestScore+1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

func (b *treeBuilder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}
