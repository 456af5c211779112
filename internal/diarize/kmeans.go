package diarize

import (
	"math"
	"math/rand"
)

// kmeansMaxIter bounds Lloyd iterations; small embedding sets converge in a
// handful of passes.
const kmeansMaxIter = 100

// kmeansResult holds one clustering outcome. Inertia is the summed squared
// distance of points to their centroids — lower is tighter.
type kmeansResult struct {
	labels  []int
	inertia float64
}

// kmeans runs Lloyd's algorithm with k-means++ seeding from a fixed seed, so
// the same vectors and seed always produce the same labeling.
//
// No clustering library in the ecosystem we build on covers seeded
// deterministic k-means over float32 vectors without pulling in a full
// scientific stack, so this stays local. ~80 lines, nothing exotic.
func kmeans(vectors [][]float32, k int, seed int64) kmeansResult {
	n := len(vectors)
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))

	centroids := seedCentroids(vectors, k, rng)
	labels := make([]int, n)

	for range kmeansMaxIter {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := sqDist(v, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		// Recompute centroids; empty clusters keep their previous position.
		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, len(vectors[0]))
		}
		for i, v := range vectors {
			counts[labels[i]]++
			for d, x := range v {
				sums[labels[i]][d] += float64(x)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}

	var inertia float64
	for i, v := range vectors {
		inertia += sqDist(v, centroids[labels[i]])
	}
	return kmeansResult{labels: labels, inertia: inertia}
}

// seedCentroids picks k starting centroids k-means++ style: the first
// uniformly, the rest proportional to squared distance from the nearest
// already-chosen centroid.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	first := rng.Intn(len(vectors))
	centroids = append(centroids, cloneVec(vectors[first]))

	dists := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := math.Inf(1)
			for _, c := range centroids {
				d = math.Min(d, sqDist(v, c))
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			// All remaining points coincide with a centroid; duplicate one.
			centroids = append(centroids, cloneVec(vectors[rng.Intn(len(vectors))]))
			continue
		}
		target := rng.Float64() * total
		idx := 0
		for i, d := range dists {
			target -= d
			if target <= 0 {
				idx = i
				break
			}
		}
		centroids = append(centroids, cloneVec(vectors[idx]))
	}
	return centroids
}

func sqDist(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
