package kinetics

import (
	"image"

	"embryo-score-go/internal/imaging"

	"gocv.io/x/gocv"
)

// bestCrop хранит самый резкий кадр области.
// Изображение заменяется только при строгом улучшении оценки.
type bestCrop struct {
	score float64
	img   gocv.Mat
	set   bool
}

// Offer вырезает область из кадра и сохраняет ее, если она резче текущей
func (b *bestCrop) Offer(frame gocv.Mat, rect image.Rectangle, size int) {
	crop, ok := imaging.CropResize(frame, rect, size)
	if !ok {
		return
	}

	score := imaging.FocusScore(crop)
	if b.set && score <= b.score {
		crop.Close()
		return
	}

	if b.set {
		b.img.Close()
	}
	b.img = crop
	b.score = score
	b.set = true
}

// Close освобождает сохраненное изображение
func (b *bestCrop) Close() {
	if b.set {
		b.img.Close()
		b.set = false
	}
}
