// Package imaging содержит операции над кадрами на базе gocv:
// оттенки серого, обрезка, оценка резкости, псевдоцвет и кодирование JPEG.
package imaging

import (
	"fmt"
	"image"
	"runtime"

	"gocv.io/x/gocv"
)

// Качество JPEG для артефактов анализа
const (
	CropJPEGQuality   = 90
	MotionJPEGQuality = 85
	PlateJPEGQuality  = 85
)

// GrayBytes возвращает копию кадра в оттенках серого (1 байт на пиксель)
func GrayBytes(frame gocv.Mat) ([]uint8, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	if frame.Channels() == 1 {
		return frame.ToBytes(), nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	ToGray(frame, &gray)
	return gray.ToBytes(), nil
}

// ToGray переводит кадр BGR/BGRA в оттенки серого
func ToGray(frame gocv.Mat, dst *gocv.Mat) {
	switch frame.Channels() {
	case 1:
		frame.CopyTo(dst)
	case 4:
		gocv.CvtColor(frame, dst, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(frame, dst, gocv.ColorBGRToGray)
	}
}

// CropResize вырезает прямоугольник из кадра и масштабирует до size×size.
// Возвращает false, если прямоугольник пуст.
func CropResize(frame gocv.Mat, rect image.Rectangle, size int) (gocv.Mat, bool) {
	rect = rect.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return gocv.NewMat(), false
	}

	region := frame.Region(rect)
	defer region.Close()

	dst := gocv.NewMat()
	gocv.Resize(region, &dst, image.Pt(size, size), 0, 0, gocv.InterpolationLanczos4)
	return dst, true
}

// FocusScore оценивает резкость как дисперсию лапласиана
func FocusScore(img gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	ToGray(img, &gray)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd
}

// FalseColor нормирует значения на максимум, масштабирует до size×size
// и раскрашивает палитрой JET. values хранятся построчно, размер w×h.
func FalseColor(values []float64, w, h, size int) (gocv.Mat, error) {
	if w <= 0 || h <= 0 || len(values) != w*h {
		return gocv.NewMat(), fmt.Errorf("invalid heatmap dimensions %dx%d for %d values", w, h, len(values))
	}

	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	norm := make([]byte, len(values))
	if peak > 0 {
		for i, v := range values {
			norm[i] = uint8(v / peak * 255)
		}
	}

	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, norm)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build heatmap mat: %w", err)
	}
	defer src.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLanczos4)
	runtime.KeepAlive(norm)

	colored := gocv.NewMat()
	gocv.ApplyColorMap(resized, &colored, gocv.ColormapJet)
	return colored, nil
}

// SideBySide склеивает два изображения одинаковой высоты по горизонтали.
// Одноканальные изображения предварительно переводятся в BGR.
func SideBySide(left, right gocv.Mat) gocv.Mat {
	l := toBGR(left)
	defer l.Close()
	r := toBGR(right)
	defer r.Close()

	dst := gocv.NewMat()
	gocv.Hconcat(l, r, &dst)
	return dst
}

func toBGR(img gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	if img.Channels() == 1 {
		gocv.CvtColor(img, &dst, gocv.ColorGrayToBGR)
	} else {
		img.CopyTo(&dst)
	}
	return dst
}

// Downscale уменьшает кадр до заданных размеров (INTER_AREA)
func Downscale(frame gocv.Mat, w, h int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(frame, &dst, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
	return dst
}

// EncodeJPEG кодирует изображение в JPEG с заданным качеством
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cannot encode empty image")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
