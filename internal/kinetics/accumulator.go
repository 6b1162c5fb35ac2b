package kinetics

import (
	"errors"
	"fmt"
	"runtime"

	"embryo-score-go/internal/imaging"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrFrameSize кадр не совпадает по размеру с масками
	ErrFrameSize = errors.New("frame size does not match region masks")
	// ErrFinalized кадр передан после финализации
	ErrFinalized = errors.New("accumulator already finalized")
)

// Options параметры накопления
type Options struct {
	SampleFPS  float64 // Частота выборки кадров (кадров в секунду)
	OutputSize int     // Размер сторон кадрированных изображений
	Parallel   bool    // Обновлять области параллельно
}

// DiffGap расстояние в кадрах между сравниваемыми кадрами (одна секунда)
func DiffGap(sampleFPS float64) int {
	return max(1, int(sampleFPS))
}

// regionState накопленное состояние одной области
type regionState struct {
	full      *Welford
	core      *Welford
	periphery *Welford

	intensitySum float64
	timeline     trend
	crop         bestCrop
}

// Accumulator потоковый накопитель статистики по областям.
// ProcessFrame вызывается последовательно, по одному разу на каждый выбранный кадр.
type Accumulator struct {
	masks  *MaskSet
	opts   Options
	logger *logrus.Logger

	window     *diffWindow
	heatmap    []float64
	background *Welford
	regions    []regionState

	frames    int
	diffs     int
	finalized bool
}

// NewAccumulator создает накопитель для готового набора масок
func NewAccumulator(masks *MaskSet, opts Options, logger *logrus.Logger) *Accumulator {
	w, h := masks.Size()
	size := w * h

	a := &Accumulator{
		masks:      masks,
		opts:       opts,
		logger:     logger,
		window:     newDiffWindow(DiffGap(opts.SampleFPS), size),
		heatmap:    make([]float64, size),
		background: NewWelford(len(masks.Background())),
		regions:    make([]regionState, masks.Len()),
	}
	for _, handle := range masks.Handles() {
		a.regions[handle] = regionState{
			full:      NewWelford(len(masks.Full(handle))),
			core:      NewWelford(len(masks.Core(handle))),
			periphery: NewWelford(len(masks.Periphery(handle))),
		}
	}

	if !masks.BackgroundUsable() {
		logger.Warnf("Фон слишком мал (%d пикс.), компенсация шума камеры отключена", len(masks.Background()))
	}
	return a
}

// ProcessFrame обновляет всю статистику одним кадром
func (a *Accumulator) ProcessFrame(frame gocv.Mat) error {
	if a.finalized {
		return ErrFinalized
	}

	w, h := a.masks.Size()
	if frame.Cols() != w || frame.Rows() != h {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrFrameSize, frame.Cols(), frame.Rows(), w, h)
	}

	gray, err := imaging.GrayBytes(frame)
	if err != nil {
		return fmt.Errorf("failed to convert frame to grayscale: %w", err)
	}
	if len(gray) != w*h {
		return fmt.Errorf("%w: unexpected pixel layout", ErrFrameSize)
	}

	a.frames++
	usable := a.masks.BackgroundUsable()
	if usable {
		a.background.UpdateIndexed(gray, a.masks.Background())
	}

	diff, ready := a.window.Push(gray)
	bgDiff := 0.0
	if ready {
		a.diffs++
		for i, d := range diff {
			a.heatmap[i] += float64(d)
		}
		if usable {
			bgDiff = meanAt(diff, a.masks.Background())
		}
	}

	update := func(handle RegionHandle) {
		a.updateRegion(handle, frame, gray, diff, ready, bgDiff)
	}

	if a.opts.Parallel && a.masks.Len() > 1 {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for _, handle := range a.masks.Handles() {
			g.Go(func() error {
				update(handle)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, handle := range a.masks.Handles() {
			update(handle)
		}
	}

	a.logger.Debugf("Кадр %d обработан (разностей: %d, разность фона: %.3f)", a.frames, a.diffs, bgDiff)
	return nil
}

// updateRegion обновляет состояние одной области; области не разделяют состояние
func (a *Accumulator) updateRegion(handle RegionHandle, frame gocv.Mat, gray, diff []uint8, ready bool, bgDiff float64) {
	st := &a.regions[handle]
	full := a.masks.Full(handle)

	st.full.UpdateIndexed(gray, full)
	st.core.UpdateIndexed(gray, a.masks.Core(handle))
	st.periphery.UpdateIndexed(gray, a.masks.Periphery(handle))
	st.intensitySum += meanAt(gray, full)

	if ready {
		st.timeline.Push(max(0.0, meanAt(diff, full)-bgDiff))
	}

	st.crop.Offer(frame, a.masks.CropRect(handle), a.opts.OutputSize)
}

// Frames количество обработанных кадров
func (a *Accumulator) Frames() int { return a.frames }

// Close освобождает сохраненные изображения
func (a *Accumulator) Close() {
	for i := range a.regions {
		a.regions[i].crop.Close()
	}
}

// meanAt среднее значение пикселей по индексам
func meanAt(pix []uint8, idx []int32) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0
	for _, p := range idx {
		sum += int(pix[p])
	}
	return float64(sum) / float64(len(idx))
}
