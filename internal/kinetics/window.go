package kinetics

// diffWindow кольцевая очередь последних кадров в оттенках серого фиксированной емкости.
// Буферы выделяются один раз и переиспользуются.
type diffWindow struct {
	slots [][]uint8
	start int
	count int
	diff  []uint8
}

// newDiffWindow создает окно на gap+1 кадров размера size
func newDiffWindow(gap, size int) *diffWindow {
	slots := make([][]uint8, gap+1)
	for i := range slots {
		slots[i] = make([]uint8, size)
	}
	return &diffWindow{
		slots: slots,
		diff:  make([]uint8, size),
	}
}

// Capacity емкость окна
func (w *diffWindow) Capacity() int { return len(w.slots) }

// Push добавляет кадр, вытесняя самый старый. Когда окно заполнено,
// возвращает модуль разности самого старого и самого нового кадра.
// Возвращаемый срез действителен до следующего вызова Push.
func (w *diffWindow) Push(gray []uint8) ([]uint8, bool) {
	capacity := len(w.slots)
	if w.count < capacity {
		copy(w.slots[(w.start+w.count)%capacity], gray)
		w.count++
	} else {
		copy(w.slots[w.start], gray)
		w.start = (w.start + 1) % capacity
	}

	if w.count < capacity {
		return nil, false
	}

	oldest := w.slots[w.start]
	newest := w.slots[(w.start+capacity-1)%capacity]
	for i := range w.diff {
		a, b := oldest[i], newest[i]
		if a > b {
			w.diff[i] = a - b
		} else {
			w.diff[i] = b - a
		}
	}
	return w.diff, true
}
