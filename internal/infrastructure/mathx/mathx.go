// Package mathx provides the small vector/matrix and statistics helpers
// shared by the forecasting engines.
package mathx

import "math"

// Softmax applies softmax normalization to a slice of scores.
// Returns a probability distribution that sums to 1.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	result := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		result[i] = math.Exp(s - maxScore)
		sum += result[i]
	}

	if sum > 0 {
		for i := range result {
			result[i] /= sum
		}
	}

	return result
}

// DotProduct computes the dot product of two vectors.
func DotProduct(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// L2Norm computes the Euclidean norm of a vector.
func L2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// MatVec multiplies an m x n matrix by an n-vector.
func MatVec(m [][]float64, v []float64) []float64 {
	result := make([]float64, len(m))
	for i := range m {
		result[i] = DotProduct(m[i], v)
	}
	return result
}

// MatMul performs matrix multiplication. A is m x n, B is n x p.
func MatMul(a, b [][]float64) [][]float64 {
	if len(a) == 0 || len(b) == 0 || len(a[0]) != len(b) {
		return nil
	}

	m := len(a)
	n := len(b)
	p := len(b[0])

	result := make([][]float64, m)
	for i := range result {
		result[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			for k := 0; k < n; k++ {
				result[i][j] += a[i][k] * b[k][j]
			}
		}
	}

	return result
}

// Transpose transposes a 2D matrix.
func Transpose(a [][]float64) [][]float64 {
	if len(a) == 0 {
		return nil
	}

	m := len(a)
	n := len(a[0])

	result := make([][]float64, n)
	for i := range result {
		result[i] = make([]float64, m)
		for j := 0; j < m; j++ {
			result[i][j] = a[j][i]
		}
	}

	return result
}

// VectorAdd adds two vectors element-wise.
func VectorAdd(a, b []float64) []float64 {
	if len(a) != len(b) {
		return nil
	}

	result := make([]float64, len(a))
	for i := range a {
		result[i] = a[i] + b[i]
	}
	return result
}

// VectorScale multiplies a vector by a scalar.
func VectorScale(v []float64, scale float64) []float64 {
	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = x * scale
	}
	return result
}

// ReLU applies the ReLU activation function.
func ReLU(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// ReLUVector applies ReLU to each element of a vector.
func ReLUVector(v []float64) []float64 {
	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = ReLU(x)
	}
	return result
}

// Sigmoid applies the logistic function.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Clamp clamps a value between min and max.
func Clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

// SinusoidalEncoding generates sinusoidal position encoding.
func SinusoidalEncoding(position int, dim int) []float64 {
	encoding := make([]float64, dim)

	for i := 0; i < dim; i++ {
		denominator := math.Pow(10000.0, float64(2*(i/2))/float64(dim))
		if i%2 == 0 {
			encoding[i] = math.Sin(float64(position) / denominator)
		} else {
			encoding[i] = math.Cos(float64(position) / denominator)
		}
	}

	return encoding
}

// TopKIndices returns the indices of the top-k values in descending order.
func TopKIndices(values []float64, k int) []int {
	if k <= 0 || len(values) == 0 {
		return []int{}
	}
	if k > len(values) {
		k = len(values)
	}

	type pair struct {
		index int
		value float64
	}
	pairs := make([]pair, len(values))
	for i, v := range values {
		pairs[i] = pair{i, v}
	}

	// Selection sort for top-k; k is always small here.
	for i := 0; i < k; i++ {
		maxIdx := i
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].value > pairs[maxIdx].value {
				maxIdx = j
			}
		}
		pairs[i], pairs[maxIdx] = pairs[maxIdx], pairs[i]
	}

	result := make([]int, k)
	for i := 0; i < k; i++ {
		result[i] = pairs[i].index
	}
	return result
}

// Mean computes the mean of a slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance computes the population variance of a slice.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

// Lag1Autocorrelation computes the lag-1 autocorrelation of a series.
// Returns 0 when the series is too short or has zero variance.
func Lag1Autocorrelation(values []float64) float64 {
	n := len(values)
	if n < 3 {
		return 0
	}

	m := Mean(values)
	var num, den float64
	for i := 0; i < n; i++ {
		d := values[i] - m
		den += d * d
		if i < n-1 {
			num += d * (values[i+1] - m)
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// PearsonCorrelation computes the correlation between two equal-length
// series. Returns 0 for degenerate inputs.
func PearsonCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}

	ma, mb := Mean(a), Mean(b)
	var num, da, db float64
	for i := range a {
		xa := a[i] - ma
		xb := b[i] - mb
		num += xa * xb
		da += xa * xa
		db += xb * xb
	}
	if da == 0 || db == 0 {
		return 0
	}
	return num / math.Sqrt(da*db)
}

// MeanCrossingRate computes the fraction of consecutive pairs that cross
// the series' own mean, normalized to [0, 1].
func MeanCrossingRate(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	m := Mean(values)
	crossings := 0
	for i := 1; i < n; i++ {
		if (values[i-1]-m)*(values[i]-m) < 0 {
			crossings++
		}
	}
	return float64(crossings) / float64(n-1)
}
