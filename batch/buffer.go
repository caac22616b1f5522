package batch

// scratch is a worker's pair of reusable pixel buffers: one for the full
// decoded image, one for the vertically resampled intermediate. Buffers
// grow on demand and previous contents are discarded.
type scratch struct {
	bufs [2][]float32
}

func (s *scratch) get(i, n int) []float32 {
	if cap(s.bufs[i]) < n {
		s.bufs[i] = make([]float32, n)
	}
	return s.bufs[i][:n]
}

func (s *scratch) release() {
	s.bufs[0] = nil
	s.bufs[1] = nil
}
