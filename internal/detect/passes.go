package detect

// PassConfig описывает пороги одного прохода детекции.
// Проходы идут от строгого к агрессивному; предикаты каждого прохода
// откалиброваны вместе с последующими метриками и не должны меняться.
type PassConfig struct {
	Label              string  // Название прохода для логов и метрик
	CircularityMin     float64 // Минимальная круглость контура 4πA/P²
	DarknessContour    float64 // Максимальное отношение яркости внутри к фону (контуры)
	DarknessHough      float64 // То же для окружностей Хафа
	HoughParam2        float64 // Порог аккумулятора Хафа
	MaxRadiusFraction  float64 // Максимальный радиус как доля ширины кадра
	BackgroundQuantile float64 // Квантиль яркости фона (50 = медиана)
}

// DefaultPasses возвращает четыре прохода с постепенным ослаблением порогов
func DefaultPasses() []PassConfig {
	return []PassConfig{
		{Label: "strict", CircularityMin: 0.35, DarknessContour: 0.99, DarknessHough: 0.92, HoughParam2: 25, MaxRadiusFraction: 0.15, BackgroundQuantile: 50},
		{Label: "relaxed", CircularityMin: 0.25, DarknessContour: 1.05, DarknessHough: 0.97, HoughParam2: 20, MaxRadiusFraction: 0.25, BackgroundQuantile: 50},
		{Label: "loose", CircularityMin: 0.18, DarknessContour: 1.10, DarknessHough: 1.02, HoughParam2: 15, MaxRadiusFraction: 0.35, BackgroundQuantile: 50},
		{Label: "aggressive", CircularityMin: 0.12, DarknessContour: 1.20, DarknessHough: 1.10, HoughParam2: 10, MaxRadiusFraction: 0.45, BackgroundQuantile: 50},
	}
}

// Параметры, общие для всех проходов
const (
	minRadiusFraction   = 0.015 // Минимальный радиус как доля ширины кадра
	houghMinRadiusFrac  = 0.02  // Минимальный радиус Хафа как доля ширины кадра
	houghDP             = 1.2
	houghParam1         = 80
	claheClipLimit      = 3.0
	claheTiles          = 8
	adaptiveC           = 10
	darknessMaskScale   = 0.8 // Радиус маски для средней яркости внутри кандидата
	mergeDistanceFactor = 0.8 // Слияние при расстоянии < 0.8 меньшего радиуса
	outlierMinFactor    = 0.35
	outlierMaxFactor    = 2.8
	rowToleranceFactor  = 1.5  // Допуск строки при упорядочивании, в средних радиусах
	ringTargetFraction  = 0.88 // Кольцо считается фоном при 88% яркости фона
	ringMaxGrowth       = 1.5  // Радиус может вырасти не более чем в 1.5 раза
)
