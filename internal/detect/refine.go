package detect

import "math"

// grayImage кадр в оттенках серого, построчно
type grayImage struct {
	pix  []uint8
	w, h int
}

// quantile возвращает квантиль яркости (0..100) с линейной интерполяцией
// между соседними рангами; q=50 дает медиану.
func quantile(pix []uint8, q float64) float64 {
	if len(pix) == 0 {
		return 0
	}

	var hist [256]int
	for _, v := range pix {
		hist[v]++
	}

	pos := q / 100 * float64(len(pix)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	loVal := rankValue(&hist, lo)
	hiVal := rankValue(&hist, hi)
	return loVal + (hiVal-loVal)*(pos-float64(lo))
}

func rankValue(hist *[256]int, rank int) float64 {
	seen := 0
	for v, n := range hist {
		seen += n
		if rank < seen {
			return float64(v)
		}
	}
	return 255
}

// meanInCircle средняя яркость внутри закрашенной окружности с целым центром и радиусом
func (g grayImage) meanInCircle(cx, cy, radius int) float64 {
	if radius < 0 {
		return 0
	}
	r2 := radius * radius
	sum, count := 0, 0
	for y := max(0, cy-radius); y <= min(g.h-1, cy+radius); y++ {
		dy := y - cy
		row := y * g.w
		for x := max(0, cx-radius); x <= min(g.w-1, cx+radius); x++ {
			dx := x - cx
			if dx*dx+dy*dy <= r2 {
				sum += int(g.pix[row+x])
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// ringMean средняя яркость кольца шириной 1 px на расстоянии radius от центра
func (g grayImage) ringMean(cx, cy, radius float64) (float64, bool) {
	inner := radius - 0.5
	outer := radius + 0.5
	in2, out2 := inner*inner, outer*outer

	sum, count := 0, 0
	for y := max(0, int(math.Floor(cy-outer))); y <= min(g.h-1, int(math.Ceil(cy+outer))); y++ {
		dy := float64(y) - cy
		row := y * g.w
		for x := max(0, int(math.Floor(cx-outer))); x <= min(g.w-1, int(math.Ceil(cx+outer))); x++ {
			dx := float64(x) - cx
			d2 := dx*dx + dy*dy
			if d2 >= in2 && d2 < out2 {
				sum += int(g.pix[row+x])
				count++
			}
		}
	}
	if count == 0 {
		return 0, false
	}
	return float64(sum) / float64(count), true
}

// refineRadius расширяет радиус кольцами наружу, пока яркость кольца
// не достигнет 88% фона. Исправляет заниженные радиусы крупных объектов
// со светлой серединой, у которых порог выделяет только темный край.
func (g grayImage) refineRadius(r Region, background, maxRadius float64) float64 {
	limit := math.Min(r.Radius*ringMaxGrowth, maxRadius)
	target := background * ringTargetFraction

	for rr := r.Radius; rr <= limit; rr++ {
		mean, ok := g.ringMean(r.CX, r.CY, rr)
		if !ok {
			break
		}
		if mean >= target {
			return rr
		}
	}
	return r.Radius
}
