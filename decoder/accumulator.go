package decoder

// accumulator is a fixed-capacity ordered storage of header pairs. The field may arrive
// before its value is known, so nFields is either equal to nValues, or exceeds it by one.
// As soon as the max-th field is opened, complete pairs are flushed and the field becomes
// the first one of the next batch.
type accumulator struct {
	fields, values   [][]byte
	nFields, nValues int
	// onFull is called when the capacity is reached. It must leave the accumulator
	// flushed.
	onFull func()
}

func newAccumulator(max int) accumulator {
	return accumulator{
		fields: make([][]byte, max),
		values: make([][]byte, max),
	}
}

// AppendField appends a field fragment. If no field is currently open, a new one is started.
func (a *accumulator) AppendField(b []byte) {
	if a.nFields == a.nValues {
		a.nFields++

		if a.nFields == len(a.fields) {
			a.onFull()
			a.nFields, a.nValues = 1, 0
		}

		a.fields[a.nFields-1] = a.fields[a.nFields-1][:0]
	}

	a.fields[a.nFields-1] = append(a.fields[a.nFields-1], b...)
}

// AppendValue appends a value fragment to the currently open field.
func (a *accumulator) AppendValue(b []byte) {
	if a.nFields != a.nValues {
		a.nValues++
		a.values[a.nValues-1] = a.values[a.nValues-1][:0]
	}

	a.values[a.nValues-1] = append(a.values[a.nValues-1], b...)
}

// Flush passes complete pairs to the consumer, together with the request URL, unless it
// was already delivered.
func (a *accumulator) Flush(s *session, consumer Consumer) {
	var url string
	if s.kind == Request && len(s.url) > 0 {
		url = string(s.url)
		s.url = s.url[:0]
	}

	consumer.OnHeaders(a.Batch(), url)
	s.flushed = true
	a.Reset()
}

// Batch returns complete pairs as a flat list of copies: field0, value0, field1, value1...
func (a *accumulator) Batch() []string {
	if a.nValues == 0 {
		return nil
	}

	batch := make([]string, 0, a.nValues*2)
	for i := 0; i < a.nValues; i++ {
		batch = append(batch, string(a.fields[i]), string(a.values[i]))
	}

	return batch
}

func (a *accumulator) Reset() {
	a.nFields, a.nValues = 0, 0
}
