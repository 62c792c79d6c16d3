package strategy

// Series кольцевой буфер цен фиксированной ёмкости с курсором записи.
// При заполнении затирает самую старую точку, хронологический порядок сохраняется.
type Series struct {
	buf  []float64
	head int // позиция следующей записи
	n    int
}

func NewSeries(capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	return &Series{buf: make([]float64, capacity)}
}

func (s *Series) Push(p float64) {
	s.buf[s.head] = p
	s.head = (s.head + 1) % len(s.buf)
	if s.n < len(s.buf) {
		s.n++
	}
}

func (s *Series) Len() int { return s.n }
func (s *Series) Cap() int { return len(s.buf) }

func (s *Series) Last() (float64, bool) {
	if s.n == 0 {
		return 0, false
	}
	i := (s.head - 1 + len(s.buf)) % len(s.buf)
	return s.buf[i], true
}

// AppendTo дописывает точки в dst от старой к новой.
func (s *Series) AppendTo(dst []float64) []float64 {
	start := (s.head - s.n + len(s.buf)) % len(s.buf)
	for i := 0; i < s.n; i++ {
		dst = append(dst, s.buf[(start+i)%len(s.buf)])
	}
	return dst
}

func (s *Series) Values() []float64 {
	return s.AppendTo(make([]float64, 0, s.n))
}
