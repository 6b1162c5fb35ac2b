package kinetics

import (
	"image"

	"embryo-score-go/internal/geometry"
	"embryo-score-go/internal/imaging"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Finalize вычисляет итоговые метрики всех областей из накопленной статистики.
// После первого вызова новые кадры не принимаются; повторный вызов дает тот же результат.
func (a *Accumulator) Finalize() []FinalizedMetrics {
	a.finalized = true

	bgStd := a.BackgroundStd()
	results := make([]FinalizedMetrics, 0, a.masks.Len())
	for _, handle := range a.masks.Handles() {
		m := a.finalizeRegion(handle, bgStd)
		a.logger.Infof("Эмбрион %d: активность %d, ядро %d, периферия %d, зона %s, паттерн %s, симметрия %.2f",
			handle, m.ActivityScore, m.Profile.CoreActivity, m.Profile.PeripheryActivity,
			m.Profile.PeakZone, m.Profile.TemporalPattern, m.Profile.ActivitySymmetry)
		results = append(results, m)
	}
	return results
}

// BackgroundStd уровень шума камеры: среднее выборочное СКО пикселей фона.
// Ноль, если фон непригоден или кадров меньше двух.
func (a *Accumulator) BackgroundStd() float64 {
	if !a.masks.BackgroundUsable() {
		return 0
	}
	return a.background.MeanSampleStd()
}

func (a *Accumulator) finalizeRegion(handle RegionHandle, bgStd float64) FinalizedMetrics {
	st := &a.regions[handle]
	m := FinalizedMetrics{
		Handle:  handle,
		BBox:    a.masks.Box(handle),
		Samples: st.full.Count(),
		Profile: neutralProfile(),
	}

	if st.full.Count() >= 2 && st.full.Len() > 0 {
		compensated := max(0.0, st.full.MeanPopulationStd()-bgStd)
		m.ActivityScore = activityScore(compensated)

		meanIntensity := st.intensitySum / float64(st.full.Count())
		m.Profile.NSD = geometry.Round(compensated/max(meanIntensity, 1), 4)
		m.Profile.ANR = geometry.Round(compensated/max(bgStd, 0.5), 4)

		if st.core.Len() > 0 {
			m.Profile.CoreActivity = activityScore(max(0.0, st.core.MeanPopulationStd()-bgStd))
		}
		if st.periphery.Len() > 0 {
			m.Profile.PeripheryActivity = activityScore(max(0.0, st.periphery.MeanPopulationStd()-bgStd))
		}
		m.Profile.PeakZone = peakZone(m.Profile.CoreActivity, m.Profile.PeripheryActivity)

		if st.timeline.Len() > 1 {
			m.Profile.TemporalVariability = geometry.Round(st.timeline.Std(), 2)
		}
		m.Profile.TemporalPattern = temporalPattern(&st.timeline, m.Profile.TemporalVariability)

		m.Profile.ActivitySymmetry, m.Profile.FocalActivityDetected = symmetry(a.quadrants(handle))
	}

	m.ActivityScore = clampInt(m.ActivityScore, 0, 100)
	m.Profile.CoreActivity = clampInt(m.Profile.CoreActivity, 0, 100)
	m.Profile.PeripheryActivity = clampInt(m.Profile.PeripheryActivity, 0, 100)
	m.Profile.ActivitySymmetry = clampFloat(m.Profile.ActivitySymmetry, 0, 1)
	m.KineticQuality = KineticQuality(m.ActivityScore, m.Profile)

	a.renderImages(handle, &m)
	return m
}

// quadrants суммирует тепловую карту внутри полной маски по четырем квадрантам
// относительно центра: верх-лево, верх-право, низ-лево, низ-право.
func (a *Accumulator) quadrants(handle RegionHandle) []float64 {
	circle := a.masks.Circle(handle)
	w, _ := a.masks.Size()

	quads := make([]float64, 4)
	for _, idx := range a.masks.Full(handle) {
		x, y := int(idx)%w, int(idx)/w
		q := 0
		if y >= circle.CY {
			q += 2
		}
		if x >= circle.CX {
			q++
		}
		quads[q] += a.heatmap[idx]
	}
	return quads
}

// symmetry оценивает равномерность энергии по квадрантам и наличие очага
func symmetry(quads []float64) (float64, bool) {
	total := floats.Sum(quads)
	if total <= 0 {
		return 1.0, false
	}
	mean, std := stat.PopMeanStdDev(quads, nil)
	sym := geometry.Round(clampFloat(1-std/max(mean, 0.01), 0, 1), 2)
	return sym, floats.Max(quads)/total > 0.5
}

// renderImages кодирует лучший кадр, тепловую карту и их композицию.
// Ошибки кодирования затрагивают только изображения этой области.
func (a *Accumulator) renderImages(handle RegionHandle, m *FinalizedMetrics) {
	st := &a.regions[handle]
	rect := a.masks.CropRect(handle)
	size := a.opts.OutputSize

	var err error
	if st.crop.set {
		m.FocusScore = st.crop.score
		if m.CropJPEG, err = imaging.EncodeJPEG(st.crop.img, imaging.CropJPEGQuality); err != nil {
			a.logger.Warnf("Эмбрион %d: ошибка кодирования кадра: %v", handle, err)
		}
	}

	values, cw, ch := a.heatmapCrop(rect)
	heat, err := imaging.FalseColor(values, cw, ch, size)
	if err != nil {
		a.logger.Warnf("Эмбрион %d: тепловая карта не построена: %v", handle, err)
		return
	}
	defer heat.Close()

	if m.MotionJPEG, err = imaging.EncodeJPEG(heat, imaging.MotionJPEGQuality); err != nil {
		a.logger.Warnf("Эмбрион %d: ошибка кодирования тепловой карты: %v", handle, err)
	}

	if !st.crop.set {
		return
	}
	composite := imaging.SideBySide(st.crop.img, heat)
	defer composite.Close()
	if m.CompositeJPEG, err = imaging.EncodeJPEG(composite, imaging.MotionJPEGQuality); err != nil {
		a.logger.Warnf("Эмбрион %d: ошибка кодирования композиции: %v", handle, err)
	}
}

// heatmapCrop копирует прямоугольник тепловой карты построчно
func (a *Accumulator) heatmapCrop(rect image.Rectangle) ([]float64, int, int) {
	w, _ := a.masks.Size()
	cw, ch := rect.Dx(), rect.Dy()
	if cw <= 0 || ch <= 0 {
		return nil, 0, 0
	}
	values := make([]float64, 0, cw*ch)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		row := y * w
		values = append(values, a.heatmap[row+rect.Min.X:row+rect.Max.X]...)
	}
	return values, cw, ch
}
