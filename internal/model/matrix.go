package model

// ConfusionMatrix counts scored outcomes by (actual, predicted) cell. Actual
// ranges over the ground-truth labels, predicted over the prediction labels
// including UNMATCHED. The scorer owns all mutation; everything downstream
// reads a snapshot.
type ConfusionMatrix map[Label]map[Label]int

// NewConfusionMatrix returns an empty matrix.
func NewConfusionMatrix() ConfusionMatrix {
	return make(ConfusionMatrix)
}

// Add increments the (actual, predicted) cell by one.
func (m ConfusionMatrix) Add(actual, predicted Label) {
	row := m[actual]
	if row == nil {
		row = make(map[Label]int)
		m[actual] = row
	}
	row[predicted]++
}

// Cell returns the count for (actual, predicted). Missing cells are zero.
func (m ConfusionMatrix) Cell(actual, predicted Label) int {
	return m[actual][predicted]
}

// Total returns the number of scored questions, the sum over all cells.
func (m ConfusionMatrix) Total() int {
	n := 0
	for _, row := range m {
		for _, count := range row {
			n += count
		}
	}
	return n
}

// Correct returns the sum of diagonal cells. UNMATCHED predictions never
// count as correct.
func (m ConfusionMatrix) Correct() int {
	n := 0
	for actual, row := range m {
		for predicted, count := range row {
			if IsCorrect(actual, predicted) {
				n += count
			}
		}
	}
	return n
}

// Accuracy returns correct/total. The boolean is false when nothing has been
// scored; callers render that as N/A rather than 0%.
func (m ConfusionMatrix) Accuracy() (float64, bool) {
	total := m.Total()
	if total == 0 {
		return 0, false
	}
	return float64(m.Correct()) / float64(total), true
}

// Clone returns a deep copy, safe to hand out while scoring continues.
func (m ConfusionMatrix) Clone() ConfusionMatrix {
	out := make(ConfusionMatrix, len(m))
	for actual, row := range m {
		copied := make(map[Label]int, len(row))
		for predicted, count := range row {
			copied[predicted] = count
		}
		out[actual] = copied
	}
	return out
}
