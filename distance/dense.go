package distance

// SquaredEuclidean computes sum((x_i - y_i)^2).
func SquaredEuclidean(x, y []float32) float32 {
	var sum float32
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	return sum
}

// Euclidean computes the L2 distance.
func Euclidean(x, y []float32) float32 {
	return sqrt32(SquaredEuclidean(x, y))
}

// Manhattan computes sum(|x_i - y_i|).
func Manhattan(x, y []float32) float32 {
	var sum float32
	for i := range x {
		sum += abs32(x[i] - y[i])
	}
	return sum
}

// Chebyshev computes max(|x_i - y_i|).
func Chebyshev(x, y []float32) float32 {
	var m float32
	for i := range x {
		if d := abs32(x[i] - y[i]); d > m {
			m = d
		}
	}
	return m
}

// Cosine computes 1 - (x . y) / (||x|| * ||y||).
func Cosine(x, y []float32) float32 {
	var dot, nx, ny float32
	for i := range x {
		dot += x[i] * y[i]
		nx += x[i] * x[i]
		ny += y[i] * y[i]
	}
	if nx == 0 || ny == 0 {
		return 1
	}
	return 1 - clampUnit(dot/(sqrt32(nx)*sqrt32(ny)))
}

// Correlation computes 1 - pearson(x, y).
func Correlation(x, y []float32) float32 {
	n := float32(len(x))
	if n == 0 {
		return 0
	}
	var mx, my float32
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var dot, nx, ny float32
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		dot += dx * dy
		nx += dx * dx
		ny += dy * dy
	}
	if nx == 0 || ny == 0 {
		return 1
	}
	return 1 - clampUnit(dot/(sqrt32(nx)*sqrt32(ny)))
}
