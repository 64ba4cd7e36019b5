package decoder

import (
	"unsafe"

	"github.com/indigo-web/httpdec/http/method"
	"github.com/indigo-web/httpdec/http/proto"
	"github.com/indigo-web/httpdec/http/status"
)

// session holds the state of a single message. It's reused among messages: nothing is
// reallocated on reset.
type session struct {
	kind       Kind
	headers    accumulator
	url        []byte
	statusText []byte
	method     method.Method
	statusCode status.Code
	proto      proto.Proto
	upgrade    bool
	keepAlive  bool
	flushed    bool

	borrowed   []byte
	borrowing  bool
	generation uint64
}

func newSession(kind Kind, maxHeaders int) session {
	return session{
		kind:    kind,
		headers: newAccumulator(maxHeaders),
	}
}

func (s *session) Reset(kind Kind) {
	s.kind = kind
	s.headers.Reset()
	s.url = s.url[:0]
	s.statusText = s.statusText[:0]
	s.method = method.Unknown
	s.statusCode = 0
	s.proto = proto.Unknown
	s.upgrade = false
	s.keepAlive = false
	s.flushed = false
}

func (s *session) AppendURL(b []byte) {
	s.url = append(s.url, b...)
}

func (s *session) AppendStatus(b []byte) {
	s.statusText = append(s.statusText, b...)
}

// Borrow binds the caller's buffer for the duration of a single Execute call.
func (s *session) Borrow(buf []byte) {
	s.generation++
	s.borrowed = buf
	s.borrowing = true
}

// Release invalidates all the views handed out since the last Borrow.
func (s *session) Release() {
	s.borrowed = nil
	s.borrowing = false
}

func (s *session) View() View {
	return View{
		data:       s.borrowed,
		generation: s.generation,
		owner:      s,
	}
}

// offset returns the position of the fragment inside the borrowed buffer.
func (s *session) offset(fragment []byte) int {
	if len(fragment) == 0 {
		return 0
	}

	/* #nosec G103 */
	offset := int(uintptr(unsafe.Pointer(unsafe.SliceData(fragment))) -
		uintptr(unsafe.Pointer(unsafe.SliceData(s.borrowed))))
	if offset < 0 || offset+len(fragment) > len(s.borrowed) {
		panic("BUG: body fragment doesn't belong to the borrowed buffer")
	}

	return offset
}
