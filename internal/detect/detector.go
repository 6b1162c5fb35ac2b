// Package detect находит эмбрионы на репрезентативном кадре
// многопроходной адаптивной детекцией окружностей.
package detect

import (
	"fmt"
	"image"
	"math"

	"embryo-score-go/internal/geometry"
	"embryo-score-go/internal/imaging"
	"embryo-score-go/pkg/models"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// PassSummary итог одного прохода
type PassSummary struct {
	Label      string `json:"label"`
	Candidates int    `json:"candidates"`
	Merged     int    `json:"merged"`
}

// Result результат детекции на одном кадре
type Result struct {
	BBoxes      []models.BoundingBox `json:"bboxes"`  // Области в порядке чтения
	Regions     []Region             `json:"regions"` // Те же области в пикселях
	Passes      []PassSummary        `json:"passes"`
	FrameWidth  int                  `json:"frame_width"`
	FrameHeight int                  `json:"frame_height"`
}

// Detector многопроходный детектор темных круглых объектов
type Detector struct {
	passes []PassConfig
	calc   *geometry.Calculator
	logger *logrus.Logger
}

// NewDetector создает детектор с проходами по умолчанию
func NewDetector(logger *logrus.Logger) *Detector {
	return NewDetectorWithPasses(DefaultPasses(), logger)
}

// NewDetectorWithPasses создает детектор с заданными проходами
func NewDetectorWithPasses(passes []PassConfig, logger *logrus.Logger) *Detector {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	return &Detector{
		passes: passes,
		calc:   geometry.NewCalculator(),
		logger: logger,
	}
}

// contourFeature геометрия контура, общая для всех проходов
type contourFeature struct {
	area        float64
	circularity float64
	cx, cy, r   float64
	meanInside  float64
}

// prepared кадр после предобработки
type prepared struct {
	gray    grayImage
	blurred gocv.Mat
	blurPix []uint8
	w, h    int

	minRadius int
	contours  []contourFeature
}

func (p *prepared) Close() {
	p.blurred.Close()
}

// Detect находит области на кадре. Пустой результат - нормальный исход.
// expectedCount <= 0 означает, что количество неизвестно.
func (d *Detector) Detect(frame gocv.Mat, expectedCount int) (*Result, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("detection frame is empty")
	}

	prep, err := d.prepare(frame)
	if err != nil {
		return nil, err
	}
	defer prep.Close()

	result := &Result{FrameWidth: prep.w, FrameHeight: prep.h}

	var best []Region
	bestMaxRadius := float64(prep.w) * d.passes[0].MaxRadiusFraction

	for _, pass := range d.passes {
		background := quantile(prep.blurPix, pass.BackgroundQuantile)
		maxRadius := int(float64(prep.w) * pass.MaxRadiusFraction)

		candidates := d.contourCandidates(prep, pass, background, maxRadius)
		candidates = append(candidates, d.houghCandidates(prep, pass, background, maxRadius)...)

		if len(candidates) == 0 {
			result.Passes = append(result.Passes, PassSummary{Label: pass.Label})
			d.logger.Infof("Проход детекции '%s': кандидатов нет (лучший результат: %d)", pass.Label, len(best))
			if expectedCount > 0 && len(best) < expectedCount {
				continue
			}
			break
		}

		merged := filterRadiusOutliers(mergeCandidates(candidates))
		if len(merged) > len(best) {
			best = merged
			bestMaxRadius = float64(maxRadius)
		}

		result.Passes = append(result.Passes, PassSummary{
			Label:      pass.Label,
			Candidates: len(candidates),
			Merged:     len(merged),
		})
		d.logger.Infof("Проход детекции '%s': %d кандидатов, %d после слияния (лучший результат: %d)",
			pass.Label, len(candidates), len(merged), len(best))

		if expectedCount <= 0 || len(best) >= expectedCount {
			break
		}
	}

	ranked := rankRegions(best)
	if expectedCount > 0 && len(ranked) > expectedCount {
		ranked = ranked[:expectedCount]
	}

	grayBackground := quantile(prep.gray.pix, 50)
	for i := range ranked {
		ranked[i].Radius = prep.gray.refineRadius(ranked[i], grayBackground, bestMaxRadius)
	}

	result.Regions = readingOrder(enforceSeparation(ranked))
	result.BBoxes = make([]models.BoundingBox, len(result.Regions))
	for i, r := range result.Regions {
		result.BBoxes[i] = d.calc.ToBoundingBox(r.CX, r.CY, r.Radius, prep.w, prep.h)
	}

	d.logger.Infof("Детекция завершена: найдено %d эмбрионов (ожидалось: %d)", len(result.BBoxes), expectedCount)
	return result, nil
}

// prepare выполняет выравнивание контраста, размытие, адаптивный порог,
// морфологию и извлечение контуров. Эти шаги не зависят от прохода.
func (d *Detector) prepare(frame gocv.Mat) (*prepared, error) {
	w, h := frame.Cols(), frame.Rows()

	gray := gocv.NewMat()
	defer gray.Close()
	imaging.ToGray(frame, &gray)

	clahe := gocv.NewCLAHEWithParams(claheClipLimit, image.Pt(claheTiles, claheTiles))
	defer clahe.Close()
	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	sigma := float64(max(3, w/300))
	blurred := gocv.NewMat()
	gocv.GaussianBlur(enhanced, &blurred, image.Pt(0, 0), sigma, sigma, gocv.BorderDefault)

	prep := &prepared{
		gray:      grayImage{pix: gray.ToBytes(), w: w, h: h},
		blurred:   blurred,
		blurPix:   blurred.ToBytes(),
		w:         w,
		h:         h,
		minRadius: int(float64(w) * minRadiusFraction),
	}
	if len(prep.gray.pix) != w*h || len(prep.blurPix) != w*h {
		prep.Close()
		return nil, fmt.Errorf("unexpected frame layout %dx%d", w, h)
	}

	blockSize := max(31, (min(w, h)/10)|1)
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, blockSize, adaptiveC)

	closeSize := max(5, w/200)
	openSize := max(3, w/400)
	kernelClose := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(closeSize, closeSize))
	defer kernelClose.Close()
	kernelOpen := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(openSize, openSize))
	defer kernelOpen.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(thresh, &closed, gocv.MorphClose, kernelClose)
	cleaned := gocv.NewMat()
	defer cleaned.Close()
	gocv.MorphologyEx(closed, &cleaned, gocv.MorphOpen, kernelOpen)

	contours := gocv.FindContours(cleaned, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		area := gocv.ContourArea(cnt)
		perimeter := gocv.ArcLength(cnt, true)
		if perimeter <= 0 {
			continue
		}
		x, y, r := gocv.MinEnclosingCircle(cnt)
		cx, cy, radius := float64(x), float64(y), float64(r)
		prep.contours = append(prep.contours, contourFeature{
			area:        area,
			circularity: 4 * math.Pi * area / (perimeter * perimeter),
			cx:          cx,
			cy:          cy,
			r:           radius,
			meanInside:  prep.gray.meanInCircle(int(cx), int(cy), int(radius*darknessMaskScale)),
		})
	}

	return prep, nil
}

// contourCandidates применяет предикаты прохода к контурам
func (d *Detector) contourCandidates(prep *prepared, pass PassConfig, background float64, maxRadius int) []Candidate {
	minArea := math.Pi * float64(prep.minRadius*prep.minRadius)
	maxArea := math.Pi * float64(maxRadius*maxRadius)

	var candidates []Candidate
	for _, c := range prep.contours {
		if c.area < minArea || c.area > maxArea {
			continue
		}
		if c.circularity < pass.CircularityMin {
			continue
		}
		if c.r < float64(prep.minRadius) || c.r > float64(maxRadius) {
			continue
		}
		darkness := c.meanInside / math.Max(background, 1.0)
		if darkness > pass.DarknessContour {
			continue
		}
		candidates = append(candidates, Candidate{
			CX:          c.cx,
			CY:          c.cy,
			Radius:      c.r,
			Area:        c.area,
			Circularity: c.circularity,
			Darkness:    darkness,
			Source:      SourceContour,
		})
	}
	return candidates
}

// houghCandidates ищет окружности преобразованием Хафа на размытом кадре
func (d *Detector) houghCandidates(prep *prepared, pass PassConfig, background float64, maxRadius int) []Candidate {
	minR := max(prep.minRadius, int(float64(prep.w)*houghMinRadiusFrac))

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(prep.blurred, &circles, gocv.HoughGradient,
		houghDP, float64(int(float64(minR)*1.5)),
		houghParam1, pass.HoughParam2,
		minR, maxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return nil
	}

	var candidates []Candidate
	for i := 0; i < circles.Cols(); i++ {
		cx := float64(circles.GetFloatAt(0, i*3))
		cy := float64(circles.GetFloatAt(0, i*3+1))
		r := float64(circles.GetFloatAt(0, i*3+2))

		mean := prep.gray.meanInCircle(int(cx), int(cy), int(r*darknessMaskScale))
		darkness := mean / math.Max(background, 1.0)
		if darkness > pass.DarknessHough {
			continue
		}
		candidates = append(candidates, Candidate{
			CX:          cx,
			CY:          cy,
			Radius:      r,
			Area:        math.Pi * r * r,
			Circularity: 1.0,
			Darkness:    darkness,
			Source:      SourceHough,
		})
	}
	return candidates
}

// Confidence оценивает уверенность детекции относительно ожидаемого количества
func Confidence(found, expected int) string {
	switch {
	case expected <= 0:
		return ""
	case found == expected:
		return "high"
	case found < expected:
		return "low"
	default:
		return "medium"
	}
}
