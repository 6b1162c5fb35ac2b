package kinetics

import "math"

// trend потоковая линейная регрессия временного ряда по индексу кадра.
// Хранит только средние и совместные моменты, сам ряд не сохраняется.
type trend struct {
	n     int
	meanX float64
	meanY float64
	cxy   float64
	m2x   float64
	m2y   float64
}

// Push добавляет следующую точку ряда; x равен ее порядковому номеру
func (t *trend) Push(y float64) {
	x := float64(t.n)
	t.n++
	n := float64(t.n)

	dx := x - t.meanX
	dy := y - t.meanY
	t.meanX += dx / n
	t.meanY += dy / n
	t.cxy += dx * (y - t.meanY)
	t.m2x += dx * (x - t.meanX)
	t.m2y += dy * (y - t.meanY)
}

// Len количество точек
func (t *trend) Len() int { return t.n }

// Mean среднее значение ряда
func (t *trend) Mean() float64 { return t.meanY }

// Slope наклон прямой наименьших квадратов
func (t *trend) Slope() float64 {
	if t.n < 2 || t.m2x == 0 {
		return 0
	}
	return t.cxy / t.m2x
}

// Std СКО ряда (генеральная совокупность)
func (t *trend) Std() float64 {
	if t.n < 1 {
		return 0
	}
	return math.Sqrt(math.Max(0, t.m2y/float64(t.n)))
}
