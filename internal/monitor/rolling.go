package monitor

// rolling is a fixed-capacity window with a running average, kept per
// source for the temperature trace in the logs.
type rolling struct {
	values []float64
	cap    int
	sum    float64
}

func newRolling(capacity int) *rolling {
	return &rolling{
		values: make([]float64, 0, capacity),
		cap:    capacity,
	}
}

func (r *rolling) push(v float64) {
	if len(r.values) == r.cap {
		r.sum -= r.values[0]
		copy(r.values, r.values[1:])
		r.values = r.values[:r.cap-1]
	}
	r.values = append(r.values, v)
	r.sum += v
}

func (r *rolling) avg() float64 {
	if len(r.values) == 0 {
		return 0
	}
	return r.sum / float64(len(r.values))
}
