package kinetics

import "embryo-score-go/pkg/models"

// KineticQuality переводит оценку активности в кинетическое качество.
// Зависимость колоколообразная: максимум при умеренной активности.
func KineticQuality(activity int, profile models.KineticProfile) int {
	var base int
	switch {
	case activity <= 5:
		base = 25
	case activity <= 15:
		base = 65
	case activity <= 30:
		base = 75
	case activity <= 50:
		base = 65
	case activity <= 70:
		base = 45
	default:
		base = 25
	}

	if profile.FocalActivityDetected && activity > 10 {
		base += 5
	}
	if profile.ActivitySymmetry < 0.4 {
		base -= 5
	}

	return clampInt(base, 0, 100)
}

// activityScore переводит скомпенсированное СКО в шкалу [0,100]
func activityScore(compensatedStd float64) int {
	return int(min(100, max(0, compensatedStd*100/15)))
}

// peakZone определяет зону наибольшей активности
func peakZone(core, periphery int) string {
	switch {
	case float64(core) > float64(periphery)*1.5 && core > 5:
		return ZoneCore
	case float64(periphery) > float64(core)*1.5 && periphery > 5:
		return ZonePeriphery
	default:
		return ZoneUniform
	}
}

// temporalPattern классифицирует динамику ряда разностей
func temporalPattern(t *trend, variability float64) string {
	if t.Len() < 3 {
		return PatternStable
	}
	relSlope := t.Slope() / max(t.Mean(), 0.01)
	switch {
	case relSlope > 0.08:
		return PatternIncreasing
	case relSlope < -0.08:
		return PatternDecreasing
	case variability > 2.0:
		return PatternIrregular
	default:
		return PatternStable
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampFloat(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
