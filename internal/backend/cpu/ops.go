package cpu

type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

func applyBinary[T number](dst, a, b []T, f func(x, y float64) float64) {
	for i := range a {
		dst[i] = T(f(float64(a[i]), float64(b[i])))
	}
}

func scaleInto[T number](dst, src []T, s float64) {
	for i, v := range src {
		dst[i] = T(float64(v) * s)
	}
}

func sumOf[T number](src []T) T {
	var sum T
	for _, v := range src {
		sum += v
	}
	return sum
}
