package train

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// network is a one-hidden-layer perceptron with a sigmoid output. Inputs
// are standardized with the training mean and standard deviation.
type network struct {
	mean, std []float64

	w1 *mat.Dense // inputs x hidden
	b1 *mat.Dense // 1 x hidden
	w2 *mat.Dense // hidden x 1
	b2 *mat.Dense // 1 x 1
}

func newNetwork(inputs, hidden int, r *rand.Rand) *network {
	n := &network{
		mean: make([]float64, inputs),
		std:  make([]float64, inputs),
		w1:   mat.NewDense(inputs, hidden, nil),
		b1:   mat.NewDense(1, hidden, nil),
		w2:   mat.NewDense(hidden, 1, nil),
		b2:   mat.NewDense(1, 1, nil),
	}
	for i := range n.std {
		n.std[i] = 1
	}
	heInit(n.w1, inputs, r)
	heInit(n.w2, hidden, r)
	return n
}

func heInit(m *mat.Dense, fanIn int, r *rand.Rand) {
	scale := math.Sqrt(2 / float64(fanIn))
	data := m.RawMatrix().Data
	for i := range data {
		data[i] = r.NormFloat64() * scale
	}
}

func (n *network) inputs() int {
	r, _ := n.w1.Dims()
	return r
}

func (n *network) hidden() int {
	_, c := n.w1.Dims()
	return c
}

// fitScaler sets the standardization from rows. Constant columns keep a
// unit deviation.
func (n *network) fitScaler(rows [][]float64) {
	d := n.inputs()
	count := float64(len(rows))
	for j := 0; j < d; j++ {
		var sum, sumSq float64
		for _, row := range rows {
			sum += row[j]
			sumSq += row[j] * row[j]
		}
		mean := sum / count
		std := math.Sqrt(math.Max(sumSq/count-mean*mean, 0))
		if std < 1e-8 {
			std = 1
		}
		n.mean[j], n.std[j] = mean, std
	}
}

// matrix builds the standardized design matrix of rows.
func (n *network) matrix(rows [][]float64) *mat.Dense {
	d := n.inputs()
	x := mat.NewDense(len(rows), d, nil)
	for i, row := range rows {
		for j := 0; j < d; j++ {
			x.Set(i, j, (row[j]-n.mean[j])/n.std[j])
		}
	}
	return x
}

// forward returns the hidden activations and output probabilities for x.
func (n *network) forward(x *mat.Dense) (*mat.Dense, []float64) {
	var h mat.Dense
	h.Mul(x, n.w1)
	h.Apply(func(_, j int, v float64) float64 {
		return math.Max(v+n.b1.At(0, j), 0)
	}, &h)

	var z mat.Dense
	z.Mul(&h, n.w2)
	rows, _ := z.Dims()
	p := make([]float64, rows)
	for i := range p {
		p[i] = sigmoid(z.At(i, 0) + n.b2.At(0, 0))
	}
	return &h, p
}

// gradients of the mean binary cross-entropy for one batch, in params order.
func (n *network) gradients(x *mat.Dense, y []float64) []*mat.Dense {
	h, p := n.forward(x)
	b := float64(len(y))

	dz := mat.NewDense(len(y), 1, nil)
	for i := range y {
		dz.Set(i, 0, (p[i]-y[i])/b)
	}

	var dw2 mat.Dense
	dw2.Mul(h.T(), dz)
	db2 := mat.NewDense(1, 1, []float64{mat.Sum(dz)})

	var dh mat.Dense
	dh.Mul(dz, n.w2.T())
	dh.Apply(func(i, j int, v float64) float64 {
		if h.At(i, j) <= 0 {
			return 0
		}
		return v
	}, &dh)

	var dw1 mat.Dense
	dw1.Mul(x.T(), &dh)
	_, hidden := dh.Dims()
	db1 := mat.NewDense(1, hidden, nil)
	for j := 0; j < hidden; j++ {
		db1.Set(0, j, mat.Sum(dh.ColView(j)))
	}
	return []*mat.Dense{&dw1, db1, &dw2, db2}
}

func (n *network) params() []*mat.Dense {
	return []*mat.Dense{n.w1, n.b1, n.w2, n.b2}
}

func (n *network) clone() *network {
	return &network{
		mean: append([]float64(nil), n.mean...),
		std:  append([]float64(nil), n.std...),
		w1:   mat.DenseCopyOf(n.w1),
		b1:   mat.DenseCopyOf(n.b1),
		w2:   mat.DenseCopyOf(n.w2),
		b2:   mat.DenseCopyOf(n.b2),
	}
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// crossEntropy is the mean binary cross-entropy of p against y.
func crossEntropy(p, y []float64) float64 {
	const eps = 1e-7
	var loss float64
	for i := range p {
		q := math.Min(math.Max(p[i], eps), 1-eps)
		loss -= y[i]*math.Log(q) + (1-y[i])*math.Log(1-q)
	}
	return loss / float64(len(p))
}

// adam holds first and second moment estimates per parameter matrix.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(lr float64, params []*mat.Dense) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8}
	for _, p := range params {
		size := len(p.RawMatrix().Data)
		a.m = append(a.m, make([]float64, size))
		a.v = append(a.v, make([]float64, size))
	}
	return a
}

func (a *adam) step(params, grads []*mat.Dense) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for k, p := range params {
		w := p.RawMatrix().Data
		g := mat.DenseCopyOf(grads[k]).RawMatrix().Data
		m, v := a.m[k], a.v[k]
		for i := range w {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			w[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + a.eps)
		}
	}
}
