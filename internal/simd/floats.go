package simd

import "math"

// Lanes is the accumulator width of the lane kernels.
const Lanes = 8

// SquaredL2Generic is the scalar reference for the squared L2 distance.
//
// SAFETY: assumes len(a) == len(b); b is resliced to len(a).
func SquaredL2Generic(a, b []float32) float32 {
	b = b[:len(a)]
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// CosineGeneric is the scalar reference for the cosine distance
// 1 - dot(a,b)/(|a||b|). It returns exactly 1 when either norm is zero.
//
// SAFETY: assumes len(a) == len(b); b is resliced to len(a).
func CosineGeneric(a, b []float32) float32 {
	b = b[:len(a)]
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return cosineFinish(dot, na, nb)
}

// SquaredL2 computes the squared L2 distance over 8 float32 lanes.
//
// SAFETY: assumes len(a) == len(b); b is resliced to len(a).
func SquaredL2(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i+Lanes <= n; i += Lanes {
		va := a[i : i+Lanes : i+Lanes]
		vb := b[i : i+Lanes : i+Lanes]
		d0 := va[0] - vb[0]
		d1 := va[1] - vb[1]
		d2 := va[2] - vb[2]
		d3 := va[3] - vb[3]
		d4 := va[4] - vb[4]
		d5 := va[5] - vb[5]
		d6 := va[6] - vb[6]
		d7 := va[7] - vb[7]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
		s4 += d4 * d4
		s5 += d5 * d5
		s6 += d6 * d6
		s7 += d7 * d7
	}

	sum := s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
	for ; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Cosine computes the cosine distance over 8 float32 lanes.
// It returns exactly 1 when either norm is zero.
//
// SAFETY: assumes len(a) == len(b); b is resliced to len(a).
func Cosine(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var dot, na, nb [Lanes]float32
	i := 0
	for ; i+Lanes <= n; i += Lanes {
		va := a[i : i+Lanes : i+Lanes]
		vb := b[i : i+Lanes : i+Lanes]
		for l := 0; l < Lanes; l++ {
			dot[l] += va[l] * vb[l]
			na[l] += va[l] * va[l]
			nb[l] += vb[l] * vb[l]
		}
	}

	var sumDot, sumA, sumB float32
	for l := 0; l < Lanes; l++ {
		sumDot += dot[l]
		sumA += na[l]
		sumB += nb[l]
	}
	for ; i < n; i++ {
		sumDot += a[i] * b[i]
		sumA += a[i] * a[i]
		sumB += b[i] * b[i]
	}
	return cosineFinish(sumDot, sumA, sumB)
}

func cosineFinish(dot, na, nb float32) float32 {
	if na == 0 || nb == 0 {
		return 1
	}
	denom := math.Sqrt(float64(na)) * math.Sqrt(float64(nb))
	return float32(1 - float64(dot)/denom)
}
