// Package kinetics накапливает потоковую статистику яркости по областям
// эмбрионов и превращает ее в кинетические биомаркеры.
package kinetics

import (
	"fmt"
	"image"

	"embryo-score-go/internal/geometry"
	"embryo-score-go/pkg/models"
)

const (
	// backgroundExpansion во сколько раз расширяется каждая область при исключении из фона
	backgroundExpansion = 1.3
	// minBackgroundPixels минимальный размер фона для оценки шума камеры
	minBackgroundPixels = 100
)

// RegionHandle непрозрачный индекс области в наборе масок
type RegionHandle int

// regionMask маски одной области в виде индексов пикселей (y*w + x)
type regionMask struct {
	box       models.BoundingBox
	circle    geometry.Circle
	crop      image.Rectangle
	full      []int32
	core      []int32
	periphery []int32
}

// MaskSet неизменяемый набор масок для одного запуска
type MaskSet struct {
	width      int
	height     int
	regions    []regionMask
	background []int32
}

// MaskBuilder строит маски областей по их геометрии
type MaskBuilder struct {
	calc    *geometry.Calculator
	padding float64
}

// NewMaskBuilder создает построитель масок; padding задает отступ области обрезки
func NewMaskBuilder(padding float64) *MaskBuilder {
	return &MaskBuilder{
		calc:    geometry.NewCalculator(),
		padding: padding,
	}
}

// Build строит полную, центральную и периферийную маски каждой области
// и общую маску фона (дополнение объединения областей, расширенных в 1.3 раза).
func (b *MaskBuilder) Build(width, height int, boxes []models.BoundingBox) (*MaskSet, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	set := &MaskSet{
		width:   width,
		height:  height,
		regions: make([]regionMask, len(boxes)),
	}

	covered := make([]bool, width*height)
	for i, box := range boxes {
		circle := b.calc.ToCircle(box, width, height)
		full := set.disk(circle.CX, circle.CY, circle.Radius)
		core, periphery := set.split(full, circle.CX, circle.CY, max(1, circle.Radius/2))

		set.regions[i] = regionMask{
			box:       box,
			circle:    circle,
			crop:      b.calc.CropRect(circle, width, height, b.padding),
			full:      full,
			core:      core,
			periphery: periphery,
		}

		for _, idx := range set.disk(circle.CX, circle.CY, int(float64(circle.Radius)*backgroundExpansion)) {
			covered[idx] = true
		}
	}

	for idx, c := range covered {
		if !c {
			set.background = append(set.background, int32(idx))
		}
	}

	return set, nil
}

// disk возвращает индексы пикселей закрашенного круга, обрезанного по кадру
func (m *MaskSet) disk(cx, cy, radius int) []int32 {
	if radius < 0 {
		return nil
	}
	r2 := radius * radius
	var idx []int32
	for y := max(0, cy-radius); y <= min(m.height-1, cy+radius); y++ {
		dy := y - cy
		for x := max(0, cx-radius); x <= min(m.width-1, cx+radius); x++ {
			dx := x - cx
			if dx*dx+dy*dy <= r2 {
				idx = append(idx, int32(y*m.width+x))
			}
		}
	}
	return idx
}

// split делит пиксели полной маски на центральный круг и кольцо вокруг него.
// Центр всегда подмножество полной маски, даже при нулевом радиусе области.
func (m *MaskSet) split(full []int32, cx, cy, coreRadius int) ([]int32, []int32) {
	r2 := coreRadius * coreRadius
	core := make([]int32, 0, len(full))
	periphery := make([]int32, 0, len(full))
	for _, idx := range full {
		dx := int(idx)%m.width - cx
		dy := int(idx)/m.width - cy
		if dx*dx+dy*dy <= r2 {
			core = append(core, idx)
		} else {
			periphery = append(periphery, idx)
		}
	}
	return core, periphery
}

// Len количество областей
func (m *MaskSet) Len() int { return len(m.regions) }

// Size размер кадра, для которого построены маски
func (m *MaskSet) Size() (int, int) { return m.width, m.height }

// Handles возвращает дескрипторы всех областей в исходном порядке
func (m *MaskSet) Handles() []RegionHandle {
	handles := make([]RegionHandle, len(m.regions))
	for i := range handles {
		handles[i] = RegionHandle(i)
	}
	return handles
}

// Box исходная геометрия области
func (m *MaskSet) Box(h RegionHandle) models.BoundingBox { return m.regions[h].box }

// Circle окружность области в пикселях
func (m *MaskSet) Circle(h RegionHandle) geometry.Circle { return m.regions[h].circle }

// CropRect квадрат обрезки области с отступом
func (m *MaskSet) CropRect(h RegionHandle) image.Rectangle { return m.regions[h].crop }

// Full пиксели полной маски области
func (m *MaskSet) Full(h RegionHandle) []int32 { return m.regions[h].full }

// Core пиксели центральной маски (половина радиуса)
func (m *MaskSet) Core(h RegionHandle) []int32 { return m.regions[h].core }

// Periphery пиксели кольца между центральной и полной маской
func (m *MaskSet) Periphery(h RegionHandle) []int32 { return m.regions[h].periphery }

// Background пиксели общего фона
func (m *MaskSet) Background() []int32 { return m.background }

// BackgroundUsable сообщает, достаточно ли фона для оценки шума камеры.
// Ровно minBackgroundPixels пикселей считается недостаточным.
func (m *MaskSet) BackgroundUsable() bool { return len(m.background) > minBackgroundPixels }
