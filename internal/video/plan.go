package video

import (
	"fmt"
	"math"

	"embryo-score-go/internal/geometry"
)

// defaultFPS используется, если контейнер не сообщает частоту кадров
const defaultFPS = 30.0

// Info параметры видео из контейнера
type Info struct {
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// PlanOptions параметры выборки кадров
type PlanOptions struct {
	SampleFPS      float64 // Целевая частота выборки
	MaxFrames      int     // Максимум выбранных кадров
	MaxFrameHeight int     // Кадры выше уменьшаются до этой высоты
}

// Plan какие кадры читать и в каком разрешении их отдавать
type Plan struct {
	Indices  []int   `json:"indices"`  // Номера кадров исходного видео по возрастанию
	Interval int     `json:"interval"` // Шаг выборки до ограничения количества
	Width    int     `json:"width"`    // Ширина выдаваемых кадров
	Height   int     `json:"height"`   // Высота выдаваемых кадров
	Scale    float64 `json:"scale"`    // Коэффициент уменьшения (1 - без изменений)
}

// NewPlan строит план выборки: каждый k-й кадр, где k = round(fps / SampleFPS),
// с равномерным прореживанием до MaxFrames.
func NewPlan(info Info, opts PlanOptions) (Plan, error) {
	if info.FrameCount <= 0 {
		return Plan{}, ErrNoFrames
	}
	if opts.SampleFPS <= 0 {
		return Plan{}, fmt.Errorf("sample fps must be positive, got %v", opts.SampleFPS)
	}

	fps := info.FPS
	if fps <= 0 {
		fps = defaultFPS
	}

	interval := max(1, int(math.RoundToEven(fps/opts.SampleFPS)))
	indices := make([]int, 0, info.FrameCount/interval+1)
	for i := 0; i < info.FrameCount; i += interval {
		indices = append(indices, i)
	}

	if opts.MaxFrames > 0 && len(indices) > opts.MaxFrames {
		step := float64(len(indices)) / float64(opts.MaxFrames)
		capped := make([]int, opts.MaxFrames)
		for i := range capped {
			capped[i] = indices[int(float64(i)*step)]
		}
		indices = capped
	}

	w, h, scale := geometry.NewCalculator().ScaleToHeight(info.Width, info.Height, opts.MaxFrameHeight)
	return Plan{
		Indices:  indices,
		Interval: interval,
		Width:    w,
		Height:   h,
		Scale:    scale,
	}, nil
}

// Middle позиция репрезентативного кадра среди выбранных
func (p Plan) Middle() int {
	return len(p.Indices) / 2
}

// Downscaled сообщает, уменьшаются ли кадры
func (p Plan) Downscaled() bool {
	return p.Scale < 1.0
}
