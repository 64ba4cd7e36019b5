package decoder

// View is a borrowed reference to the buffer passed into Execute. It's valid only until
// that Execute call returns: any access afterward panics, because the memory belongs to
// the caller and may already be reused.
type View struct {
	data       []byte
	generation uint64
	owner      *session
}

// Valid reports whether the view may still be read.
func (v View) Valid() bool {
	return v.owner != nil && v.owner.borrowing && v.owner.generation == v.generation
}

// Bytes returns the whole buffer passed into Execute.
func (v View) Bytes() []byte {
	if !v.Valid() {
		panic("decoder: view is used after Execute returned")
	}

	return v.data
}

// Slice returns length bytes starting at offset. Copy them if they are needed after
// the callback returns.
func (v View) Slice(offset, length int) []byte {
	return v.Bytes()[offset : offset+length]
}
