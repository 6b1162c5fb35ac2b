package detect

import (
	"math"
	"sort"
)

// Source тег происхождения кандидата
type Source string

const (
	SourceContour Source = "contour"
	SourceHough   Source = "hough"
)

// Candidate кандидат одного прохода; живет только до слияния
type Candidate struct {
	CX          float64
	CY          float64
	Radius      float64
	Area        float64
	Circularity float64
	Darkness    float64
	Source      Source
}

// Region итоговая окружность в пикселях кадра
type Region struct {
	CX          float64 `json:"cx"`
	CY          float64 `json:"cy"`
	Radius      float64 `json:"radius"`
	Darkness    float64 `json:"darkness"`
	Circularity float64 `json:"circularity"`
	Sources     int     `json:"sources"`
	Score       float64 `json:"score"`
}

// mergeCandidates объединяет кандидатов, центры которых ближе 0.8 меньшего радиуса.
// Группа схлопывается в средний центр и радиус с лучшими темнотой и круглостью.
func mergeCandidates(candidates []Candidate) []Region {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Area > sorted[j].Area })

	used := make([]bool, len(sorted))
	merged := make([]Region, 0, len(sorted))

	for i, a := range sorted {
		if used[i] {
			continue
		}
		group := []Candidate{a}
		for j := i + 1; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			b := sorted[j]
			dist := math.Hypot(a.CX-b.CX, a.CY-b.CY)
			if dist < math.Min(a.Radius, b.Radius)*mergeDistanceFactor {
				group = append(group, b)
				used[j] = true
			}
		}
		used[i] = true
		merged = append(merged, collapse(group))
	}

	return merged
}

func collapse(group []Candidate) Region {
	r := Region{
		Darkness:    math.Inf(1),
		Circularity: math.Inf(-1),
		Sources:     len(group),
	}
	for _, c := range group {
		r.CX += c.CX
		r.CY += c.CY
		r.Radius += c.Radius
		r.Darkness = math.Min(r.Darkness, c.Darkness)
		r.Circularity = math.Max(r.Circularity, c.Circularity)
	}
	n := float64(len(group))
	r.CX /= n
	r.CY /= n
	r.Radius /= n
	return r
}

// filterRadiusOutliers убирает области с радиусом вне [0.35, 2.8] медианы.
// Применяется только когда областей больше двух.
func filterRadiusOutliers(regions []Region) []Region {
	if len(regions) <= 2 {
		return regions
	}

	radii := make([]float64, len(regions))
	for i, r := range regions {
		radii[i] = r.Radius
	}
	sort.Float64s(radii)
	median := radii[len(radii)/2]

	kept := regions[:0:0]
	for _, r := range regions {
		if r.Radius >= outlierMinFactor*median && r.Radius <= outlierMaxFactor*median {
			kept = append(kept, r)
		}
	}
	return kept
}

// rankRegions считает оценку и сортирует по убыванию
func rankRegions(regions []Region) []Region {
	ranked := make([]Region, len(regions))
	copy(ranked, regions)
	for i := range ranked {
		ranked[i].Score = (1-ranked[i].Darkness)*40 + ranked[i].Circularity*30 + float64(min(ranked[i].Sources, 3))*10
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// enforceSeparation отбрасывает области, оказавшиеся ближе 0.8 меньшего радиуса
// к области с более высокой оценкой. Ожидает вход, отсортированный по оценке.
func enforceSeparation(ranked []Region) []Region {
	kept := make([]Region, 0, len(ranked))
	for _, r := range ranked {
		ok := true
		for _, k := range kept {
			if math.Hypot(r.CX-k.CX, r.CY-k.CY) < math.Min(r.Radius, k.Radius)*mergeDistanceFactor {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, r)
		}
	}
	return kept
}

// readingOrder упорядочивает области по строкам сверху вниз, внутри строки слева направо
func readingOrder(regions []Region) []Region {
	ordered := make([]Region, len(regions))
	copy(ordered, regions)
	if len(ordered) <= 1 {
		return ordered
	}

	avgR := 0.0
	for _, r := range ordered {
		avgR += r.Radius
	}
	avgR /= float64(len(ordered))
	rowTol := avgR * rowToleranceFactor

	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CY < ordered[j].CY })

	rows := [][]Region{{ordered[0]}}
	for _, r := range ordered[1:] {
		last := rows[len(rows)-1]
		if math.Abs(r.CY-last[0].CY) < rowTol {
			rows[len(rows)-1] = append(last, r)
		} else {
			rows = append(rows, []Region{r})
		}
	}

	result := make([]Region, 0, len(ordered))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].CX < row[j].CX })
		result = append(result, row...)
	}
	return result
}
