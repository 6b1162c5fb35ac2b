package video

import (
	"errors"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewPlan(t *testing.T) {
	t.Parallel()

	opts := PlanOptions{SampleFPS: 8, MaxFrames: 120, MaxFrameHeight: 720}

	t.Run("samples every k-th frame", func(t *testing.T) {
		t.Parallel()
		plan, err := NewPlan(Info{FPS: 30, FrameCount: 20, Width: 640, Height: 480}, opts)
		require.NoError(t, err)
		// round(30/8) = 4
		assert.Equal(t, 4, plan.Interval)
		assert.Equal(t, []int{0, 4, 8, 12, 16}, plan.Indices)
		assert.Equal(t, 2, plan.Middle())
		assert.False(t, plan.Downscaled())
		assert.Equal(t, 640, plan.Width)
	})

	t.Run("half rounds to even", func(t *testing.T) {
		t.Parallel()
		plan, err := NewPlan(Info{FPS: 20, FrameCount: 10, Width: 64, Height: 48}, opts)
		require.NoError(t, err)
		// 20/8 = 2.5 -> 2
		assert.Equal(t, 2, plan.Interval)
	})

	t.Run("caps long videos evenly", func(t *testing.T) {
		t.Parallel()
		plan, err := NewPlan(Info{FPS: 8, FrameCount: 1000, Width: 64, Height: 48}, opts)
		require.NoError(t, err)
		require.Len(t, plan.Indices, 120)
		assert.Equal(t, 0, plan.Indices[0])
		step := 1000.0 / 120.0
		assert.Equal(t, int(119*step), plan.Indices[119])
		for i := 1; i < len(plan.Indices); i++ {
			assert.Greater(t, plan.Indices[i], plan.Indices[i-1])
		}
	})

	t.Run("downscales tall frames", func(t *testing.T) {
		t.Parallel()
		plan, err := NewPlan(Info{FPS: 30, FrameCount: 60, Width: 1920, Height: 1080}, opts)
		require.NoError(t, err)
		assert.True(t, plan.Downscaled())
		assert.Equal(t, 1280, plan.Width)
		assert.Equal(t, 720, plan.Height)
	})

	t.Run("unknown fps falls back to 30", func(t *testing.T) {
		t.Parallel()
		plan, err := NewPlan(Info{FrameCount: 60, Width: 64, Height: 48}, opts)
		require.NoError(t, err)
		assert.Equal(t, 4, plan.Interval)
	})

	t.Run("rejects empty video", func(t *testing.T) {
		t.Parallel()
		_, err := NewPlan(Info{FPS: 30}, opts)
		assert.True(t, errors.Is(err, ErrNoFrames))
	})
}

// writeVideo пишет короткое MJPG видео; кадр i содержит полосу, смещенную на i пикселей
func writeVideo(t *testing.T, frames, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plate.avi")

	writer, err := gocv.VideoWriterFile(path, "MJPG", 30, w, h, true)
	if err != nil || !writer.IsOpened() {
		t.Skip("MJPG video writer is not available")
	}
	defer writer.Close()

	for i := 0; i < frames; i++ {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), h, w, gocv.MatTypeCV8UC3)
		gocv.Rectangle(&frame, image.Rect(i, 0, i+4, h), color.RGBA{R: 20, G: 20, B: 20}, -1)
		require.NoError(t, writer.Write(frame))
		frame.Close()
	}
	return path
}

func TestSampledReader(t *testing.T) {
	path := writeVideo(t, 24, 64, 48)

	info, err := ReadInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)

	plan, err := NewPlan(info, PlanOptions{SampleFPS: 8, MaxFrames: 120, MaxFrameHeight: 720})
	require.NoError(t, err)

	reader, err := OpenSampled(path, plan)
	require.NoError(t, err)
	defer reader.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	count := 0
	for {
		err := reader.Next(&frame)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 64, frame.Cols())
		assert.Equal(t, 48, frame.Rows())
		count++
	}
	assert.Equal(t, len(plan.Indices), count)
	assert.Equal(t, count, reader.Sampled())

	rep, err := Representative(path, plan)
	require.NoError(t, err)
	defer rep.Close()
	assert.False(t, rep.Empty())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := ReadInfo(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)

	_, err = Representative("unused.mp4", Plan{Indices: []int{0}})
	assert.True(t, errors.Is(err, ErrTooFewFrames))
}
