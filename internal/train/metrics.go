package train

// Metrics summarizes the classifier on a labelled set. Fresh is the
// positive class.
type Metrics struct {
	Loss      float64 `json:"loss"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`

	// Confusion is indexed [actual][predicted] with 0 rotten and 1 fresh.
	Confusion [2][2]int `json:"confusion_matrix"`
}

// Evaluate computes metrics for probabilities p against labels y at a 0.5
// threshold.
func Evaluate(p, y []float64) Metrics {
	var m Metrics
	if len(p) == 0 {
		return m
	}
	for i := range p {
		actual, predicted := 0, 0
		if y[i] >= 0.5 {
			actual = 1
		}
		if p[i] >= 0.5 {
			predicted = 1
		}
		m.Confusion[actual][predicted]++
	}
	tp := float64(m.Confusion[1][1])
	tn := float64(m.Confusion[0][0])
	fp := float64(m.Confusion[0][1])
	fn := float64(m.Confusion[1][0])

	m.Loss = crossEntropy(p, y)
	m.Accuracy = (tp + tn) / float64(len(p))
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	return m
}
