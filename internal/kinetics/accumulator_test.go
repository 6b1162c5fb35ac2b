package kinetics

import (
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"math/rand"
	"testing"

	"embryo-score-go/internal/detect"
	"embryo-score-go/internal/geometry"
	"embryo-score-go/pkg/models"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// grayMat строит одноканальный кадр, владеющий собственной копией пикселей
func grayMat(t *testing.T, w, h int, pix []uint8) gocv.Mat {
	t.Helper()
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, pix)
	require.NoError(t, err)
	defer src.Close()
	return src.Clone()
}

func box(cx, cy, radius float64, w, h int) models.BoundingBox {
	return geometry.NewCalculator().ToBoundingBox(cx, cy, radius, w, h)
}

func countDisk(w, h, cx, cy, radius int) int {
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				n++
			}
		}
	}
	return n
}

func TestMaskBuilder(t *testing.T) {
	t.Parallel()

	masks, err := NewMaskBuilder(0.2).Build(400, 300, []models.BoundingBox{box(200, 150, 30, 400, 300)})
	require.NoError(t, err)
	require.Equal(t, 1, masks.Len())

	handle := masks.Handles()[0]
	circle := masks.Circle(handle)
	assert.Equal(t, geometry.Circle{CX: 200, CY: 150, Radius: 30, Width: 60, Height: 60}, circle)

	full, core, periphery := masks.Full(handle), masks.Core(handle), masks.Periphery(handle)
	assert.Equal(t, countDisk(400, 300, 200, 150, 30), len(full))
	assert.Equal(t, countDisk(400, 300, 200, 150, 15), len(core))
	assert.Equal(t, len(full), len(core)+len(periphery))

	inCore := map[int32]bool{}
	for _, idx := range core {
		inCore[idx] = true
	}
	for _, idx := range periphery {
		assert.False(t, inCore[idx])
	}

	assert.Equal(t, 400*300-countDisk(400, 300, 200, 150, 39), len(masks.Background()))
	assert.True(t, masks.BackgroundUsable())
	assert.Equal(t, image.Rect(158, 108, 242, 192), masks.CropRect(handle))
}

func TestMaskBuilderUnusableBackground(t *testing.T) {
	t.Parallel()

	masks, err := NewMaskBuilder(0.2).Build(20, 20, []models.BoundingBox{box(10, 10, 10, 20, 20)})
	require.NoError(t, err)
	assert.Less(t, len(masks.Background()), 100)
	assert.False(t, masks.BackgroundUsable())

	_, err = NewMaskBuilder(0.2).Build(0, 20, nil)
	assert.Error(t, err)
}

func TestMaskBuilderBackgroundThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		w, h   int
		usable bool
	}{
		{"exactly 100 pixels", 10, 10, false},
		{"101 pixels", 101, 1, true},
	}
	for _, tt := range tests {
		masks, err := NewMaskBuilder(0.2).Build(tt.w, tt.h, nil)
		require.NoError(t, err)
		assert.Len(t, masks.Background(), tt.w*tt.h, tt.name)
		assert.Equal(t, tt.usable, masks.BackgroundUsable(), tt.name)
	}
}

func TestMaskBuilderTinyRegion(t *testing.T) {
	t.Parallel()

	// Область 1%x1% кадра 100x100 дает нулевой радиус в пикселях
	masks, err := NewMaskBuilder(0.2).Build(100, 100, []models.BoundingBox{
		{XPercent: 50, YPercent: 50, WidthPercent: 1, HeightPercent: 1},
	})
	require.NoError(t, err)
	handle := masks.Handles()[0]
	require.Zero(t, masks.Circle(handle).Radius)

	full, core := masks.Full(handle), masks.Core(handle)
	assert.Equal(t, []int32{50*100 + 50}, full)
	assert.Equal(t, full, core)
	assert.Empty(t, masks.Periphery(handle))

	inFull := map[int32]bool{}
	for _, idx := range full {
		inFull[idx] = true
	}
	for _, idx := range core {
		assert.True(t, inFull[idx], "core pixel %d outside full mask", idx)
	}
}

func TestMaskBuilderCoreWithinFullAtFrameEdge(t *testing.T) {
	t.Parallel()

	// У края кадра центр остается подмножеством полной маски
	masks, err := NewMaskBuilder(0.2).Build(50, 50, []models.BoundingBox{box(0, 0, 1, 50, 50)})
	require.NoError(t, err)
	handle := masks.Handles()[0]
	full, core, periphery := masks.Full(handle), masks.Core(handle), masks.Periphery(handle)
	assert.Equal(t, len(full), len(core)+len(periphery))
	assert.Subset(t, full, core)
}

func newTestAccumulator(t *testing.T, w, h int, boxes []models.BoundingBox, fps float64, parallel bool) *Accumulator {
	t.Helper()
	masks, err := NewMaskBuilder(0.2).Build(w, h, boxes)
	require.NoError(t, err)
	acc := NewAccumulator(masks, Options{SampleFPS: fps, OutputSize: 32, Parallel: parallel}, quietLogger())
	t.Cleanup(acc.Close)
	return acc
}

func noiseFrames(seed int64, w, h, n int) [][]uint8 {
	rng := rand.New(rand.NewSource(seed))
	frames := make([][]uint8, n)
	for i := range frames {
		pix := make([]uint8, w*h)
		for j := range pix {
			pix[j] = uint8(100 + rng.Intn(40))
		}
		frames[i] = pix
	}
	return frames
}

func feed(t *testing.T, acc *Accumulator, w, h int, frames [][]uint8) {
	t.Helper()
	for _, pix := range frames {
		frame := grayMat(t, w, h, pix)
		require.NoError(t, acc.ProcessFrame(frame))
		frame.Close()
	}
}

func column(frames [][]uint8, p int32) []float64 {
	col := make([]float64, len(frames))
	for i, f := range frames {
		col[i] = float64(f[p])
	}
	return col
}

func meanDiff(a, b []uint8, idx []int32) float64 {
	sum := 0.0
	for _, p := range idx {
		sum += math.Abs(float64(a[p]) - float64(b[p]))
	}
	return sum / float64(len(idx))
}

func TestStreamingMatchesBatch(t *testing.T) {
	t.Parallel()

	const w, h, n = 60, 48, 20
	const fps = 4.0
	frames := noiseFrames(11, w, h, n)

	acc := newTestAccumulator(t, w, h, []models.BoundingBox{box(30, 24, 10, w, h)}, fps, false)
	feed(t, acc, w, h, frames)

	handle := acc.masks.Handles()[0]
	full := acc.masks.Full(handle)
	background := acc.masks.Background()
	require.True(t, acc.masks.BackgroundUsable())

	// Эталон: все кадры в памяти, СКО по каждому пикселю напрямую
	regionStd := 0.0
	for _, p := range full {
		_, std := stat.PopMeanStdDev(column(frames, p), nil)
		regionStd += std
	}
	regionStd /= float64(len(full))

	bgStd := 0.0
	for _, p := range background {
		bgStd += stat.StdDev(column(frames, p), nil)
	}
	bgStd /= float64(len(background))

	assert.InDelta(t, regionStd, acc.regions[handle].full.MeanPopulationStd(), 1e-9)
	assert.InDelta(t, bgStd, acc.BackgroundStd(), 1e-9)

	gap := DiffGap(fps)
	var xs, timeline []float64
	heatmap := make([]float64, w*h)
	for i := gap; i < n; i++ {
		v := meanDiff(frames[i-gap], frames[i], full) - meanDiff(frames[i-gap], frames[i], background)
		xs = append(xs, float64(len(xs)))
		timeline = append(timeline, math.Max(0, v))
		for p := range heatmap {
			heatmap[p] += math.Abs(float64(frames[i-gap][p]) - float64(frames[i][p]))
		}
	}

	tl := acc.regions[handle].timeline
	require.Equal(t, len(timeline), tl.Len())
	_, slope := stat.LinearRegression(xs, timeline, nil, false)
	tlMean, tlStd := stat.PopMeanStdDev(timeline, nil)
	assert.InDelta(t, slope, tl.Slope(), 1e-9)
	assert.InDelta(t, tlMean, tl.Mean(), 1e-9)
	assert.InDelta(t, tlStd, tl.Std(), 1e-9)
	assert.Equal(t, heatmap, acc.heatmap)

	metrics := acc.Finalize()
	require.Len(t, metrics, 1)
	assert.Equal(t, activityScore(math.Max(0, regionStd-bgStd)), metrics[0].ActivityScore)
	assert.Equal(t, n, metrics[0].Samples)
	assert.InDelta(t, math.Round(tlStd*100)/100, metrics[0].Profile.TemporalVariability, 1e-9)
}

func TestZeroMotionScenario(t *testing.T) {
	t.Parallel()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(220, 220, 220, 0), 300, 400, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Circle(&frame, image.Pt(200, 150), 30, color.RGBA{R: 60, G: 60, B: 60}, -1)

	result, err := detect.NewDetector(quietLogger()).Detect(frame, 0)
	require.NoError(t, err)
	require.Len(t, result.BBoxes, 1)
	assert.InDelta(t, 50.0, result.BBoxes[0].XPercent, 0.5)
	assert.InDelta(t, 50.0, result.BBoxes[0].YPercent, 0.7)

	acc := newTestAccumulator(t, 400, 300, result.BBoxes, 8, false)
	for i := 0; i < 20; i++ {
		require.NoError(t, acc.ProcessFrame(frame))
	}

	metrics := acc.Finalize()
	require.Len(t, metrics, 1)
	m := metrics[0]
	assert.Equal(t, 0, m.ActivityScore)
	assert.Equal(t, 0, m.Profile.CoreActivity)
	assert.Equal(t, 0, m.Profile.PeripheryActivity)
	assert.Equal(t, ZoneUniform, m.Profile.PeakZone)
	assert.Equal(t, PatternStable, m.Profile.TemporalPattern)
	assert.Equal(t, 1.0, m.Profile.ActivitySymmetry)
	assert.False(t, m.Profile.FocalActivityDetected)
	assert.Zero(t, acc.BackgroundStd())

	assert.NotEmpty(t, m.CropJPEG)
	assert.NotEmpty(t, m.MotionJPEG)
	assert.NotEmpty(t, m.CompositeJPEG)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	const w, h = 60, 48
	acc := newTestAccumulator(t, w, h, []models.BoundingBox{box(30, 24, 10, w, h)}, 2, false)
	feed(t, acc, w, h, noiseFrames(5, w, h, 12))

	first := acc.Finalize()
	second := acc.Finalize()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Finalize() mismatch (-first +second):\n%s", diff)
	}

	frame := grayMat(t, w, h, make([]uint8, w*h))
	defer frame.Close()
	assert.True(t, errors.Is(acc.ProcessFrame(frame), ErrFinalized))
}

func TestParallelUpdatesMatchSequential(t *testing.T) {
	t.Parallel()

	const w, h = 90, 60
	boxes := []models.BoundingBox{box(20, 20, 8, w, h), box(60, 20, 8, w, h), box(45, 45, 10, w, h)}
	frames := noiseFrames(21, w, h, 10)

	seq := newTestAccumulator(t, w, h, boxes, 3, false)
	feed(t, seq, w, h, frames)
	par := newTestAccumulator(t, w, h, boxes, 3, true)
	feed(t, par, w, h, frames)

	if diff := cmp.Diff(seq.Finalize(), par.Finalize()); diff != "" {
		t.Errorf("parallel mismatch (-seq +par):\n%s", diff)
	}
}

func TestOutputsAreClamped(t *testing.T) {
	t.Parallel()

	const w, h = 60, 48
	acc := newTestAccumulator(t, w, h, []models.BoundingBox{box(30, 24, 10, w, h)}, 1, false)
	full := acc.masks.Full(acc.masks.Handles()[0])

	// Фон неподвижен, область мигает между 0 и 255
	for i := 0; i < 10; i++ {
		pix := make([]uint8, w*h)
		for j := range pix {
			pix[j] = 128
		}
		value := uint8(0)
		if i%2 == 1 {
			value = 255
		}
		for _, p := range full {
			pix[p] = value
		}
		frame := grayMat(t, w, h, pix)
		require.NoError(t, acc.ProcessFrame(frame))
		frame.Close()
	}

	m := acc.Finalize()[0]
	assert.Equal(t, 100, m.ActivityScore)
	assert.Equal(t, 100, m.Profile.CoreActivity)
	assert.Equal(t, 100, m.Profile.PeripheryActivity)
	assert.GreaterOrEqual(t, m.Profile.ActivitySymmetry, 0.0)
	assert.LessOrEqual(t, m.Profile.ActivitySymmetry, 1.0)
	assert.GreaterOrEqual(t, m.KineticQuality, 0)
	assert.LessOrEqual(t, m.KineticQuality, 100)
}

func TestTooFewSamplesGiveNeutralMetrics(t *testing.T) {
	t.Parallel()

	const w, h = 60, 48
	acc := newTestAccumulator(t, w, h, []models.BoundingBox{box(30, 24, 10, w, h)}, 8, false)
	feed(t, acc, w, h, noiseFrames(9, w, h, 1))

	m := acc.Finalize()[0]
	assert.Equal(t, 1, m.Samples)
	assert.Equal(t, 0, m.ActivityScore)
	assert.Equal(t, neutralProfile(), m.Profile)
	assert.Equal(t, 25, m.KineticQuality)
}

func TestUnusableBackgroundDisablesCompensation(t *testing.T) {
	t.Parallel()

	const w, h = 20, 20
	acc := newTestAccumulator(t, w, h, []models.BoundingBox{box(10, 10, 10, w, h)}, 1, false)
	require.False(t, acc.masks.BackgroundUsable())

	frames := noiseFrames(13, w, h, 6)
	feed(t, acc, w, h, frames)

	assert.Zero(t, acc.BackgroundStd())
	full := acc.masks.Full(acc.masks.Handles()[0])
	regionStd := 0.0
	for _, p := range full {
		_, std := stat.PopMeanStdDev(column(frames, p), nil)
		regionStd += std
	}
	regionStd /= float64(len(full))

	m := acc.Finalize()[0]
	assert.Equal(t, activityScore(regionStd), m.ActivityScore)
}

func TestProcessFrameRejectsWrongSize(t *testing.T) {
	t.Parallel()

	acc := newTestAccumulator(t, 60, 48, []models.BoundingBox{box(30, 24, 10, 60, 48)}, 8, false)
	frame := grayMat(t, 30, 30, make([]uint8, 900))
	defer frame.Close()

	err := acc.ProcessFrame(frame)
	assert.True(t, errors.Is(err, ErrFrameSize))
	assert.Equal(t, 0, acc.Frames())
}

func TestReviewText(t *testing.T) {
	t.Parallel()

	m := FinalizedMetrics{
		ActivityScore:  42,
		KineticQuality: 65,
		Profile: models.KineticProfile{
			CoreActivity:      30,
			PeripheryActivity: 50,
			PeakZone:          ZonePeriphery,
			TemporalPattern:   PatternIrregular,
			ActivitySymmetry:  0.75,
		},
	}

	text := m.ReviewText()
	assert.Contains(t, text, "activity_score: 42/100\n")
	assert.Contains(t, text, "kinetic_quality: 65/100\n")
	assert.Contains(t, text, "peak_zone: periphery\n")
	assert.Contains(t, text, "temporal_pattern: irregular\n")
	assert.Contains(t, text, "activity_symmetry: 0.75\n")
}
