package gallery

import (
	"math"
	"math/rand/v2"
)

const (
	kMeansMaxIterations = 300
	kMeansTolerance     = 1e-4
)

// kMeans partitions points into k clusters by minimizing within-cluster variance
// (Lloyd iterations after k-means++ seeding) and returns the cluster centroids.
// The same seed and input always produce the same centroids.
func kMeans(points [][]float32, k int, seed int64) [][]float32 {
	n := len(points)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}

	data := make([][]float64, n)
	for i, p := range points {
		data[i] = make([]float64, len(p))
		for j, x := range p {
			data[i][j] = float64(x)
		}
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)) //nolint:gosec // clustering, not crypto
	centers := seedCenters(data, k, rng)
	tol := kMeansTolerance * meanVariance(data)

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for range kMeansMaxIterations {
		changed := false
		for i, p := range data {
			best := nearestCenter(p, centers)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}

		next := recomputeCenters(data, assign, centers)
		shift := 0.0
		for c := range centers {
			shift += squaredDistance(centers[c], next[c])
		}
		centers = next

		if !changed || shift <= tol {
			break
		}
	}

	out := make([][]float32, len(centers))
	for c, center := range centers {
		out[c] = make([]float32, len(center))
		for j, x := range center {
			out[c][j] = float32(x)
		}
	}
	return out
}

// seedCenters picks k initial centers with k-means++ D² weighting.
func seedCenters(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	chosen := make([]bool, n)
	centers := make([][]float64, 0, k)

	first := rng.IntN(n)
	chosen[first] = true
	centers = append(centers, clone(data[first]))

	minDist := make([]float64, n)
	for i, p := range data {
		minDist[i] = squaredDistance(p, centers[0])
	}

	for len(centers) < k {
		total := 0.0
		for _, d := range minDist {
			total += d
		}

		next := -1
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range minDist {
				if d <= 0 {
					continue
				}
				acc += d
				next = i
				if acc >= target {
					break
				}
			}
		}
		if next < 0 {
			// All remaining points coincide with a chosen center.
			for i := range data {
				if !chosen[i] {
					next = i
					break
				}
			}
		}

		chosen[next] = true
		centers = append(centers, clone(data[next]))
		for i, p := range data {
			if d := squaredDistance(p, data[next]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return centers
}

func nearestCenter(p []float64, centers [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := squaredDistance(p, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recomputeCenters returns the member mean of each cluster; an empty cluster
// keeps its previous center.
func recomputeCenters(data [][]float64, assign []int, prev [][]float64) [][]float64 {
	dim := len(data[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, p := range data {
		c := assign[i]
		counts[c]++
		for j, x := range p {
			sums[c][j] += x
		}
	}

	next := make([][]float64, len(prev))
	for c := range prev {
		if counts[c] == 0 {
			next[c] = clone(prev[c])
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
		next[c] = sums[c]
	}
	return next
}

func meanVariance(data [][]float64) float64 {
	dim := len(data[0])
	if dim == 0 {
		return 0
	}
	n := float64(len(data))
	total := 0.0
	for j := range dim {
		mean := 0.0
		for _, p := range data {
			mean += p[j]
		}
		mean /= n
		v := 0.0
		for _, p := range data {
			d := p[j] - mean
			v += d * d
		}
		total += v / n
	}
	return total / float64(dim)
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
