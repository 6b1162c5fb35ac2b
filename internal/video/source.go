// Package video читает видео через gocv и отдает выбранные кадры по одному.
package video

import (
	"errors"
	"fmt"
	"io"

	"embryo-score-go/internal/imaging"

	"gocv.io/x/gocv"
)

var (
	// ErrOpen видео не удалось открыть или декодировать
	ErrOpen = errors.New("could not open video")
	// ErrNoFrames в контейнере нет кадров
	ErrNoFrames = errors.New("video has no frames")
	// ErrTooFewFrames выбрано меньше двух кадров
	ErrTooFewFrames = errors.New("too few frames extracted")
)

// MinSampledFrames минимум кадров для кинетического анализа
const MinSampledFrames = 2

// FrameSource поставляет декодированные кадры строго по порядку.
// Next возвращает io.EOF после последнего кадра.
type FrameSource interface {
	Next(dst *gocv.Mat) error
	Close() error
}

// ReadInfo читает параметры видео из контейнера
func ReadInfo(path string) (Info, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer vc.Close()

	if !vc.IsOpened() {
		return Info{}, ErrOpen
	}

	info := Info{
		FPS:        vc.Get(gocv.VideoCaptureFPS),
		FrameCount: int(vc.Get(gocv.VideoCaptureFrameCount)),
		Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
	if info.FrameCount <= 0 {
		return info, ErrNoFrames
	}
	return info, nil
}

// SampledReader читает только кадры из плана, пропуская остальные без декодирования
type SampledReader struct {
	vc   *gocv.VideoCapture
	plan Plan
	next int  // Позиция в plan.Indices
	pos  int  // Номер следующего кадра в потоке
	done bool // Поток закончился раньше плана
	buf  gocv.Mat
}

// OpenSampled открывает видео для последовательного чтения по плану
func OpenSampled(path string, plan Plan) (*SampledReader, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrOpen
	}
	return &SampledReader{
		vc:   vc,
		plan: plan,
		buf:  gocv.NewMat(),
	}, nil
}

// Next читает следующий выбранный кадр в dst, при необходимости уменьшая его
func (r *SampledReader) Next(dst *gocv.Mat) error {
	if r.done || r.next >= len(r.plan.Indices) {
		return io.EOF
	}

	target := r.plan.Indices[r.next]
	if skip := target - r.pos; skip > 0 {
		r.vc.Grab(skip)
		r.pos = target
	}

	if ok := r.vc.Read(&r.buf); !ok || r.buf.Empty() {
		r.done = true
		return io.EOF
	}
	r.pos++
	r.next++

	if r.plan.Downscaled() {
		scaled := imaging.Downscale(r.buf, r.plan.Width, r.plan.Height)
		defer scaled.Close()
		scaled.CopyTo(dst)
		return nil
	}
	r.buf.CopyTo(dst)
	return nil
}

// Sampled количество уже выданных кадров
func (r *SampledReader) Sampled() int { return r.next }

// Close освобождает декодер
func (r *SampledReader) Close() error {
	r.buf.Close()
	return r.vc.Close()
}

// Representative возвращает средний выбранный кадр.
// Видео читается отдельным проходом до нужной позиции.
func Representative(path string, plan Plan) (gocv.Mat, error) {
	if len(plan.Indices) < MinSampledFrames {
		return gocv.NewMat(), ErrTooFewFrames
	}

	single := plan
	single.Indices = plan.Indices[:plan.Middle()+1]

	reader, err := OpenSampled(path, single)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer reader.Close()

	frame := gocv.NewMat()
	for {
		if err := reader.Next(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			frame.Close()
			return gocv.NewMat(), err
		}
	}

	if reader.Sampled() != len(single.Indices) || frame.Empty() {
		frame.Close()
		return gocv.NewMat(), fmt.Errorf("%w: representative frame %d unreadable", ErrTooFewFrames, plan.Middle())
	}
	return frame, nil
}
