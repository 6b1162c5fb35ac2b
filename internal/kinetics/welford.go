package kinetics

import "math"

// Welford попиксельный онлайн-аккумулятор среднего и дисперсии.
// Память зависит только от числа пикселей маски, а не от числа кадров.
type Welford struct {
	n    int
	mean []float64
	m2   []float64
}

// NewWelford создает аккумулятор для вектора заданной длины
func NewWelford(size int) *Welford {
	return &Welford{
		mean: make([]float64, size),
		m2:   make([]float64, size),
	}
}

// Update добавляет одно наблюдение вектора
func (w *Welford) Update(x []float64) {
	w.n++
	n := float64(w.n)
	for i, v := range x {
		delta := v - w.mean[i]
		w.mean[i] += delta / n
		w.m2[i] += delta * (v - w.mean[i])
	}
}

// UpdateIndexed добавляет пиксели кадра pix, выбранные индексами idx
func (w *Welford) UpdateIndexed(pix []uint8, idx []int32) {
	w.n++
	n := float64(w.n)
	for i, p := range idx {
		v := float64(pix[p])
		delta := v - w.mean[i]
		w.mean[i] += delta / n
		w.m2[i] += delta * (v - w.mean[i])
	}
}

// Count количество наблюдений
func (w *Welford) Count() int { return w.n }

// Len длина вектора
func (w *Welford) Len() int { return len(w.mean) }

// Mean текущее попиксельное среднее
func (w *Welford) Mean() []float64 {
	return append([]float64(nil), w.mean...)
}

// PopulationVariance попиксельная дисперсия генеральной совокупности (M2/n).
// Используется для областей эмбрионов.
func (w *Welford) PopulationVariance() []float64 {
	return w.variance(w.n)
}

// SampleVariance попиксельная выборочная дисперсия (M2/(n-1)).
// Используется для фона.
func (w *Welford) SampleVariance() []float64 {
	return w.variance(w.n - 1)
}

// MeanPopulationStd среднее по пикселям СКО генеральной совокупности
func (w *Welford) MeanPopulationStd() float64 {
	return w.meanStd(w.n)
}

// MeanSampleStd среднее по пикселям выборочного СКО
func (w *Welford) MeanSampleStd() float64 {
	return w.meanStd(w.n - 1)
}

func (w *Welford) variance(denom int) []float64 {
	out := make([]float64, len(w.m2))
	if denom <= 0 || w.n < 2 {
		return out
	}
	for i, m2 := range w.m2 {
		out[i] = m2 / float64(denom)
	}
	return out
}

func (w *Welford) meanStd(denom int) float64 {
	if denom <= 0 || w.n < 2 || len(w.m2) == 0 {
		return 0
	}
	sum := 0.0
	for _, m2 := range w.m2 {
		sum += math.Sqrt(math.Max(0, m2/float64(denom)))
	}
	return sum / float64(len(w.m2))
}
