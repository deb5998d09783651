package fountain

import (
	"math"
	"sort"
)

// Defaults for the robust soliton distribution parameters,
// used when an [EncoderConfig] leaves them zero.
const (
	DefaultSolitonC     = 0.1
	DefaultSolitonDelta = 0.5
)

// robustSolitonCDF returns the cumulative robust soliton distribution
// over degrees 1..k, using the tuning constants c and delta
// from Luby's "LT Codes" (2002).
//
// The CDF is one-based: cdf[0] is 0 and cdf[k] is 1,
// and the probability of degree d is cdf[d]-cdf[d-1].
func robustSolitonCDF(k int, c, delta float64) []float64 {
	// Position of the spike added to the ideal soliton distribution.
	r := c * math.Log(float64(k)/delta) * math.Sqrt(float64(k))
	m := k
	if r > 0 {
		m = int(math.Round(float64(k) / r))
	}
	m = min(max(m, 1), k)

	pdf := make([]float64, k+1)
	pdf[1] = 1/float64(k) + 1/float64(m)
	total := pdf[1]
	for i := 2; i <= k; i++ {
		pdf[i] = 1 / (float64(i) * float64(i-1))
		if i < m {
			pdf[i] += 1 / (float64(i) * float64(m))
		}
		if i == m {
			pdf[i] += math.Log(float64(k)/(float64(m)*delta)) / float64(m)
		}
		total += pdf[i]
	}

	cdf := make([]float64, k+1)
	for i := 1; i <= k; i++ {
		cdf[i] = cdf[i-1] + pdf[i]/total
	}

	// Rounding may leave the tail a hair under 1.
	cdf[k] = 1
	return cdf
}

// pickDegree returns the smallest degree d such that cdf[d] > r,
// for r drawn from rng.
func pickDegree(rng *stream, cdf []float64) int {
	r := rng.Float64()
	d := sort.SearchFloat64s(cdf, r)
	if d >= len(cdf) {
		return len(cdf) - 1
	}
	if cdf[d] > r {
		return max(d, 1)
	}
	if d < len(cdf)-1 {
		return d + 1
	}
	return len(cdf) - 1
}

// sampleUniform picks num distinct values from [0, n), in ascending order.
// If num >= n, every value is returned without consuming rng.
func sampleUniform(rng *stream, num, n int) []int {
	if num >= n {
		picks := make([]int, n)
		for i := range picks {
			picks[i] = i
		}
		return picks
	}

	picks := make([]int, 0, num)
	seen := make(map[int]struct{}, num)
	for len(picks) < num {
		p := rng.IntN(n)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		picks = append(picks, p)
	}
	sort.Ints(picks)
	return picks
}
