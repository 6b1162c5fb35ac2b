package kinetics

import (
	"fmt"
	"strings"

	"embryo-score-go/pkg/models"
)

// Зоны пиковой активности
const (
	ZoneCore      = "core"
	ZonePeriphery = "periphery"
	ZoneUniform   = "uniform"
)

// Временные паттерны активности
const (
	PatternIncreasing = "increasing"
	PatternDecreasing = "decreasing"
	PatternIrregular  = "irregular"
	PatternStable     = "stable"
)

// FinalizedMetrics итоговая запись одной области после финализации
type FinalizedMetrics struct {
	Handle         RegionHandle
	BBox           models.BoundingBox
	Samples        int // Кадров накоплено
	ActivityScore  int
	Profile        models.KineticProfile
	KineticQuality int
	FocusScore     float64 // Резкость лучшего кадра (дисперсия лапласиана)

	CropJPEG      []byte // Самый резкий кадр области
	MotionJPEG    []byte // Тепловая карта движения в псевдоцвете
	CompositeJPEG []byte // Кадр и тепловая карта рядом
}

// ReviewText представляет метрики в виде структурированного текста для качественной оценки
func (m FinalizedMetrics) ReviewText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "activity_score: %d/100\n", m.ActivityScore)
	fmt.Fprintf(&b, "kinetic_quality: %d/100\n", m.KineticQuality)
	fmt.Fprintf(&b, "core_activity: %d\n", m.Profile.CoreActivity)
	fmt.Fprintf(&b, "periphery_activity: %d\n", m.Profile.PeripheryActivity)
	fmt.Fprintf(&b, "peak_zone: %s\n", m.Profile.PeakZone)
	fmt.Fprintf(&b, "temporal_pattern: %s\n", m.Profile.TemporalPattern)
	fmt.Fprintf(&b, "activity_symmetry: %.2f\n", m.Profile.ActivitySymmetry)
	fmt.Fprintf(&b, "focal_activity_detected: %t\n", m.Profile.FocalActivityDetected)
	return b.String()
}

// EmbryoResult переводит метрики в ответ API; пути к артефактам заполняет вызывающий
func (m FinalizedMetrics) EmbryoResult() models.EmbryoResult {
	return models.EmbryoResult{
		Index:               int(m.Handle),
		BBox:                m.BBox,
		ActivityScore:       m.ActivityScore,
		KineticProfile:      m.Profile,
		KineticQualityScore: m.KineticQuality,
	}
}

func neutralProfile() models.KineticProfile {
	return models.KineticProfile{
		PeakZone:         ZoneUniform,
		TemporalPattern:  PatternStable,
		ActivitySymmetry: 1.0,
	}
}
