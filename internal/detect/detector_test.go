package detect

import (
	"image"
	"image/color"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// plate рисует темные диски на равномерном светлом фоне
func plate(w, h int, centers []image.Point, radius int) gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(220, 220, 220, 0), h, w, gocv.MatTypeCV8UC3)
	for _, c := range centers {
		gocv.Circle(&frame, c, radius, color.RGBA{R: 60, G: 60, B: 60}, -1)
	}
	return frame
}

func TestDetectSingleDisk(t *testing.T) {
	frame := plate(400, 300, []image.Point{{X: 200, Y: 150}}, 30)
	defer frame.Close()

	result, err := NewDetector(quietLogger()).Detect(frame, 0)
	require.NoError(t, err)
	require.Len(t, result.Regions, 1)

	region := result.Regions[0]
	assert.InDelta(t, 200, region.CX, 2)
	assert.InDelta(t, 150, region.CY, 2)
	assert.InDelta(t, 30, region.Radius, 30*0.05)

	box := result.BBoxes[0]
	assert.InDelta(t, 50.0, box.XPercent, 0.5)
	assert.InDelta(t, 50.0, box.YPercent, 0.7)
	assert.Equal(t, 400, result.FrameWidth)
	assert.Equal(t, 300, result.FrameHeight)
}

func TestDetectEmptyPlate(t *testing.T) {
	frame := plate(400, 300, nil, 0)
	defer frame.Close()

	result, err := NewDetector(quietLogger()).Detect(frame, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Regions)
	assert.Empty(t, result.BBoxes)
}

func TestDetectRespectsExpectedCount(t *testing.T) {
	centers := []image.Point{{X: 80, Y: 150}, {X: 200, Y: 150}, {X: 320, Y: 150}}
	frame := plate(400, 300, centers, 28)
	defer frame.Close()

	detector := NewDetector(quietLogger())
	for _, expected := range []int{1, 2} {
		result, err := detector.Detect(frame, expected)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(result.Regions), expected)
	}
}

func TestDetectOutputsSeparatedRegionsInReadingOrder(t *testing.T) {
	centers := []image.Point{{X: 320, Y: 80}, {X: 80, Y: 80}, {X: 200, Y: 220}}
	frame := plate(400, 300, centers, 26)
	defer frame.Close()

	result, err := NewDetector(quietLogger()).Detect(frame, 3)
	require.NoError(t, err)

	regions := result.Regions
	for i := range regions {
		for j := i + 1; j < len(regions); j++ {
			dist := math.Hypot(regions[i].CX-regions[j].CX, regions[i].CY-regions[j].CY)
			assert.GreaterOrEqual(t, dist, math.Min(regions[i].Radius, regions[j].Radius)*0.8)
		}
	}
	for i := 1; i < len(regions); i++ {
		prev, cur := regions[i-1], regions[i]
		sameRow := math.Abs(cur.CY-prev.CY) < 26*1.5
		if sameRow {
			assert.Less(t, prev.CX, cur.CX)
		} else {
			assert.Less(t, prev.CY, cur.CY)
		}
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	frame := plate(400, 300, []image.Point{{X: 120, Y: 100}, {X: 280, Y: 200}}, 25)
	defer frame.Close()

	detector := NewDetector(quietLogger())
	first, err := detector.Detect(frame, 2)
	require.NoError(t, err)
	second, err := detector.Detect(frame, 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetectRejectsEmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := NewDetector(quietLogger()).Detect(empty, 0)
	assert.Error(t, err)
}
