package fbank

import "math"

// hammingWindow returns an n-point Hamming window.
func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// filterWeight is one non-zero coefficient of a triangular mel filter.
// Storing filters sparsely keeps the per-frame inner loop tight: most of a
// dense [numMels][half] matrix is zero.
type filterWeight struct {
	bin    int
	weight float64
}

// melBank builds numMels triangular filters over the FFT bins between
// lowFreq and highFreq. Filter edges are forced at least one bin apart so
// narrow low-frequency filters never collapse to zero width.
func melBank(numMels, nfft, sampleRate int, lowFreq, highFreq float64) [][]filterWeight {
	half := nfft/2 + 1

	points := make([]int, numMels+2)
	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)
	for i := range points {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(numMels+1)
		bin := int(math.Round(melToHz(mel) * float64(nfft) / float64(sampleRate)))
		points[i] = min(bin, half-1)
	}
	for i := 1; i < len(points); i++ {
		if points[i] <= points[i-1] {
			points[i] = points[i-1] + 1
		}
	}

	bank := make([][]filterWeight, numMels)
	for m := range numMels {
		left, center, right := points[m], points[m+1], points[m+2]
		var filter []filterWeight
		for k := left; k < center && k < half; k++ {
			filter = append(filter, filterWeight{k, float64(k-left) / float64(center-left)})
		}
		for k := center; k <= right && k < half; k++ {
			filter = append(filter, filterWeight{k, float64(right-k) / float64(right-center)})
		}
		bank[m] = filter
	}
	return bank
}

// fft runs an in-place radix-2 Cooley-Tukey transform over re/im, whose
// length must be a power of two.
func fft(re, im []float64) {
	n := len(re)
	if n <= 1 {
		return
	}

	// Bit-reversal reordering.
	for i, j := 0, 0; i < n-1; i++ {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
		k := n >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		angle := -2 * math.Pi / float64(size)
		stepR, stepI := math.Cos(angle), math.Sin(angle)

		for start := 0; start < n; start += size {
			wR, wI := 1.0, 0.0
			for k := range half {
				u, v := start+k, start+k+half
				tR := wR*re[v] - wI*im[v]
				tI := wR*im[v] + wI*re[v]
				re[v], im[v] = re[u]-tR, im[u]-tI
				re[u] += tR
				im[u] += tI
				wR, wI = wR*stepR-wI*stepI, wR*stepI+wI*stepR
			}
		}
	}
}
