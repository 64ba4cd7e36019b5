package buffer

// Buffer is a bounded scratch memory storing consequent byte segments. The tokenizer uses
// it to collect tokens, which may be split among several Execute calls (method, protocol
// version, tracked header names and values). Segments stay valid until Clear.
type Buffer struct {
	memory  []byte
	begin   int
	maxSize int
}

func New(initialSize, maxSize int) Buffer {
	return Buffer{
		memory:  make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// AppendByte writes the byte unless the total size would exceed the limit. In that case
// nothing is written and false is returned.
func (b *Buffer) AppendByte(c byte) (ok bool) {
	if len(b.memory)+1 > b.maxSize {
		return false
	}

	b.memory = append(b.memory, c)
	return true
}

// SegmentLength returns a number of bytes written since the last Finish.
func (b *Buffer) SegmentLength() int {
	return len(b.memory) - b.begin
}

// Finish completes current segment, returning its value.
func (b *Buffer) Finish() []byte {
	segment := b.memory[b.begin:]
	b.begin = len(b.memory)

	return segment
}

// Clear drops all the segments. Memory is kept.
func (b *Buffer) Clear() {
	b.begin = 0
	b.memory = b.memory[:0]
}
