package geometry

import (
	"image"
	"math"

	"embryo-score-go/pkg/models"
)

// Circle описывает область эмбриона в целых пикселях кадра
type Circle struct {
	CX     int // Центр по X
	CY     int // Центр по Y
	Radius int // Радиус
	Width  int // Ширина области (диаметр по X)
	Height int // Высота области (диаметр по Y)
}

// Calculator для геометрических преобразований кадра
type Calculator struct{}

// NewCalculator создает новый калькулятор
func NewCalculator() *Calculator {
	return &Calculator{}
}

// ToBoundingBox переводит окружность в пикселях в проценты кадра.
// Округление (2 знака для процентов, 1 знак для радиуса) входит в формат.
func (c *Calculator) ToBoundingBox(cx, cy, radius float64, frameW, frameH int) models.BoundingBox {
	diameter := radius * 2
	return models.BoundingBox{
		XPercent:      Round(cx/float64(frameW)*100, 2),
		YPercent:      Round(cy/float64(frameH)*100, 2),
		WidthPercent:  Round(diameter/float64(frameW)*100, 2),
		HeightPercent: Round(diameter/float64(frameH)*100, 2),
		RadiusPx:      Round(radius, 1),
	}
}

// ToCircle переводит процентную область обратно в пиксели кадра
func (c *Calculator) ToCircle(box models.BoundingBox, frameW, frameH int) Circle {
	bw := int(box.WidthPercent / 100 * float64(frameW))
	bh := int(box.HeightPercent / 100 * float64(frameH))
	return Circle{
		CX:     int(box.XPercent / 100 * float64(frameW)),
		CY:     int(box.YPercent / 100 * float64(frameH)),
		Radius: max(bw, bh) / 2,
		Width:  bw,
		Height: bh,
	}
}

// CropRect вычисляет квадрат вокруг области с отступом, обрезанный по кадру
func (c *Calculator) CropRect(circle Circle, frameW, frameH int, padding float64) image.Rectangle {
	size := max(circle.Width, circle.Height)
	padded := int(float64(size) * (1 + padding*2))
	half := padded / 2

	return image.Rect(
		max(0, circle.CX-half),
		max(0, circle.CY-half),
		min(frameW, circle.CX+half),
		min(frameH, circle.CY+half),
	)
}

// ScaleToHeight вычисляет размеры кадра после уменьшения до maxHeight.
// Кадры ниже порога не масштабируются.
func (c *Calculator) ScaleToHeight(w, h, maxHeight int) (int, int, float64) {
	if maxHeight <= 0 || h <= maxHeight {
		return w, h, 1.0
	}
	scale := float64(maxHeight) / float64(h)
	return w * maxHeight / h, maxHeight, scale
}

// Round округляет значение до заданного количества знаков
func Round(value float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(value*p) / p
}
