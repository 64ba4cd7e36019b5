package tokenizer

import (
	"fmt"
	"io"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/httpdec/config"
	"github.com/indigo-web/httpdec/http/method"
	"github.com/indigo-web/httpdec/http/proto"
	"github.com/indigo-web/httpdec/http/status"
	"github.com/indigo-web/httpdec/internal/buffer"
	"github.com/indigo-web/httpdec/internal/strcomp"
	"github.com/indigo-web/utils/uf"
)

type Mode uint8

const (
	Request Mode = iota + 1
	Response
)

func (m Mode) String() string {
	switch m {
	case Request:
		return "request"
	case Response:
		return "response"
	default:
		return "unknown"
	}
}

// Handler receives the tokens in order of their appearance. URL, status, header field and
// header value may be delivered in several fragments, if the token is split among multiple
// Execute calls. No fragment may be retained after the callback returns. Body fragments are
// always sub-slices of the data passed into Execute.
//
// Every header field is followed by at least one OnHeaderValue call, even if the value
// is empty.
type Handler interface {
	OnMessageBegin()
	OnURL(b []byte)
	OnStatus(b []byte)
	OnHeaderField(b []byte)
	OnHeaderValue(b []byte)
	// OnHeadersComplete returns whether the message body must be skipped. This is
	// the case, for example, for responses to HEAD requests.
	OnHeadersComplete() (skipBody bool)
	OnBody(b []byte)
	OnMessageComplete()
}

const (
	maxTrackedNameLength  = len("transfer-encoding")
	maxTrackedValueLength = 256
	maxContentLength      = 1 << 62
)

// Tokenizer is a stream-based HTTP/1.x message tokenizer. It doesn't store any part of the
// message except of the few headers affecting the framing, instead the tokens are passed
// to the Handler as soon as they are recognized.
type Tokenizer struct {
	handler Handler
	cfg     config.Tokenizer
	chunked *chunkedbody.Parser
	// scratch stores tokens, which are needed in a whole: method, protocol, names and values
	// of the tracked headers.
	scratch buffer.Buffer

	mode   Mode
	state  parserState
	errno  Errno
	header trackedHeader
	flags  flag

	method        method.Method
	statusCode    status.Code
	proto         proto.Proto
	contentLength int64
	nread         int
	digits        uint8
	upgrade       bool
	// emitted is set when at least one fragment of current token was passed to the handler.
	emitted   bool
	untracked bool
	// ows holds the trailing whitespace of a header value, which was cut off by the end of
	// the previous data. It's emitted only if a non-whitespace byte follows.
	ows []byte
}

func New(mode Mode, handler Handler, cfg config.Tokenizer) *Tokenizer {
	t := &Tokenizer{
		handler: handler,
		cfg:     cfg,
		scratch: buffer.New(32, maxTrackedNameLength+maxTrackedValueLength),
	}
	t.Reset(mode)

	return t
}

// Reset brings the tokenizer into its initial state, regardless of the current one. Errno
// is reset, too.
func (t *Tokenizer) Reset(mode Mode) {
	if t.chunked == nil || t.state == eBodyChunked {
		t.chunked = chunkedbody.NewParser(chunkedbody.DefaultSettings())
	}

	t.mode = mode
	t.errno = OK
	t.resetMessage()
	t.state = t.startState()
}

// Execute processes the data and returns the number of bytes consumed. Anything less than
// len(data) means that either an error occurred, the tokenizer was paused or the connection
// was upgraded. Zero-length data signals the end of stream.
func (t *Tokenizer) Execute(data []byte) int {
	if t.errno != OK {
		return 0
	}

	if len(data) == 0 {
		t.eof()
		return 0
	}

	if t.state == eUpgraded {
		return 0
	}

	var mark int
	// wsAt is the start of the whitespace run at the tail of the current header value.
	wsAt := -1
	if t.state == eHeaderValue && len(t.ows) > 0 {
		wsAt = 0
	}

	for i := 0; i < len(data); i++ {
		c := data[i]

		if t.state.inHead() {
			if t.nread++; t.nread > t.cfg.MaxHeaderSize {
				return t.fail(HeaderOverflow, i)
			}
		}

		switch t.state {
		case eStartReq:
			if c == '\r' || c == '\n' {
				continue
			}

			t.resetMessage()
			if !isToken[c] {
				return t.fail(InvalidMethod, i)
			}

			t.scratch.AppendByte(c)
			t.state = eMethod
			t.handler.OnMessageBegin()
			if t.errno != OK {
				return i + 1
			}
		case eStartRes:
			if c == '\r' || c == '\n' {
				continue
			}

			t.resetMessage()
			if c != 'H' {
				return t.fail(InvalidConstant, i)
			}

			t.scratch.AppendByte(c)
			t.state = eResProto
			t.handler.OnMessageBegin()
			if t.errno != OK {
				return i + 1
			}
		case eMethod:
			if c == ' ' {
				t.method = method.Parse(uf.B2S(t.scratch.Finish()))
				t.scratch.Clear()
				if t.method == method.Unknown {
					return t.fail(InvalidMethod, i)
				}

				t.state = eURL
				t.emitted = false
				mark = i + 1
				continue
			}

			if !isToken[c] || t.scratch.SegmentLength() >= t.cfg.MaxMethodLength {
				return t.fail(InvalidMethod, i)
			}

			t.scratch.AppendByte(c)
		case eURL:
			if c == ' ' {
				if i == mark && !t.emitted {
					return t.fail(InvalidURL, i)
				}

				if i > mark {
					t.handler.OnURL(data[mark:i])
				}

				t.state = eReqProto
				if t.errno != OK {
					return i + 1
				}

				continue
			}

			if !isURLChar(c) {
				return t.fail(InvalidURL, i)
			}
		case eReqProto:
			switch c {
			case '\r', '\n':
				t.proto = proto.FromBytes(t.scratch.Finish())
				t.scratch.Clear()
				if t.proto == proto.Unknown {
					return t.fail(InvalidVersion, i)
				}

				if c == '\r' {
					t.state = eLineLF
				} else {
					t.state = eHeaderFieldStart
				}
			default:
				if t.scratch.SegmentLength() >= proto.TokenLength {
					return t.fail(InvalidVersion, i)
				}

				t.scratch.AppendByte(c)
			}
		case eResProto:
			if c == ' ' {
				t.proto = proto.FromBytes(t.scratch.Finish())
				t.scratch.Clear()
				if t.proto == proto.Unknown {
					return t.fail(InvalidVersion, i)
				}

				t.state = eStatusCode
				continue
			}

			if t.scratch.SegmentLength() >= proto.TokenLength {
				return t.fail(InvalidVersion, i)
			}

			t.scratch.AppendByte(c)
		case eStatusCode:
			if !isDigit(c) {
				return t.fail(InvalidStatus, i)
			}

			t.statusCode = t.statusCode*10 + status.Code(c-'0')
			if t.digits++; t.digits == 3 {
				if t.statusCode < status.Min {
					return t.fail(InvalidStatus, i)
				}

				t.state = eStatusCodeSP
			}
		case eStatusCodeSP:
			switch c {
			case ' ':
				t.state = eStatusText
				t.emitted = false
				mark = i + 1
			case '\r':
				t.state = eLineLF
			case '\n':
				t.state = eHeaderFieldStart
			default:
				return t.fail(InvalidStatus, i)
			}
		case eStatusText:
			if c == '\r' || c == '\n' {
				if i > mark {
					t.handler.OnStatus(data[mark:i])
				}

				if c == '\r' {
					t.state = eLineLF
				} else {
					t.state = eHeaderFieldStart
				}

				if t.errno != OK {
					return i + 1
				}

				continue
			}

			if !isValueChar(c) {
				return t.fail(InvalidStatus, i)
			}
		case eLineLF:
			if c != '\n' {
				return t.fail(InvalidConstant, i)
			}

			t.state = eHeaderFieldStart
		case eHeaderFieldStart:
			switch {
			case c == '\r':
				t.state = eHeadersLF
			case c == '\n':
				if n, stop := t.headersDone(i); stop {
					return n
				}
			case isToken[c]:
				t.state = eHeaderField
				t.header = hOther
				t.untracked = false
				t.scratch.Clear()
				t.trackName(c)
				mark = i
			default:
				return t.fail(InvalidHeaderToken, i)
			}
		case eHeaderField:
			if c == ':' {
				if i > mark {
					t.handler.OnHeaderField(data[mark:i])
				}

				t.header = t.classify()
				t.state = eHeaderValueOWS
				t.emitted = false
				if t.errno != OK {
					return i + 1
				}

				continue
			}

			if !isToken[c] {
				return t.fail(InvalidHeaderToken, i)
			}

			t.trackName(c)
		case eHeaderValueOWS:
			switch c {
			case ' ', '\t':
			case '\r', '\n':
				if n, stop := t.valueDone(data, mark, i, i); stop {
					return n
				}
			default:
				if !isValueChar(c) {
					return t.fail(InvalidHeaderToken, i)
				}

				if !t.trackValue(c) {
					return t.fail(HeaderOverflow, i)
				}

				t.state = eHeaderValue
				wsAt = -1
				mark = i
			}
		case eHeaderValue:
			if c == '\r' || c == '\n' {
				end := i
				if wsAt >= 0 {
					end = wsAt
				}

				wsAt = -1
				if n, stop := t.valueDone(data, mark, end, i); stop {
					return n
				}

				continue
			}

			if !isValueChar(c) {
				return t.fail(InvalidHeaderToken, i)
			}

			if !t.trackValue(c) {
				return t.fail(HeaderOverflow, i)
			}

			switch {
			case c == ' ' || c == '\t':
				if wsAt < 0 {
					wsAt = i
				}
			case len(t.ows) > 0:
				// the held back whitespace turned out to be inside the value. It precedes
				// everything in data up to this byte.
				t.ows = append(t.ows, data[:i+1]...)
				t.handler.OnHeaderValue(t.ows)
				t.ows = t.ows[:0]
				t.emitted = true
				wsAt = -1
				mark = i + 1
				if t.errno != OK {
					return i + 1
				}
			default:
				wsAt = -1
			}
		case eHeaderValueLF:
			if c != '\n' {
				return t.fail(InvalidConstant, i)
			}

			if errno := t.finishHeader(); errno != OK {
				return t.fail(errno, i)
			}

			t.state = eHeaderFieldStart
		case eHeadersLF:
			if c != '\n' {
				return t.fail(InvalidConstant, i)
			}

			if n, stop := t.headersDone(i); stop {
				return n
			}
		case eBodyIdentity:
			n := len(data) - i
			if int64(n) > t.contentLength {
				n = int(t.contentLength)
			}

			t.contentLength -= int64(n)
			t.handler.OnBody(data[i : i+n])
			i += n - 1

			if t.contentLength == 0 {
				if consumed, stop := t.messageComplete(i + 1); stop {
					return consumed
				}

				continue
			}

			if t.errno != OK {
				return i + 1
			}
		case eBodyIdentityEOF:
			t.handler.OnBody(data[i:])
			i = len(data) - 1
			if t.errno != OK {
				return len(data)
			}
		case eBodyChunked:
			chunk, extra, err := t.chunked.Parse(data[i:], t.flags&fTrailer != 0)
			consumed := len(data) - len(extra)

			switch err {
			case nil:
				if consumed <= i && len(chunk) == 0 {
					return t.fail(InvalidChunk, i)
				}

				if len(chunk) > 0 {
					t.handler.OnBody(chunk)
				}

				i = consumed - 1
				if t.errno != OK {
					return consumed
				}
			case io.EOF:
				if len(chunk) > 0 {
					t.handler.OnBody(chunk)
				}

				i = consumed - 1
				if n, stop := t.messageComplete(consumed); stop {
					return n
				}
			default:
				return t.fail(InvalidChunk, i)
			}
		case eDead:
			if c == '\r' || c == '\n' {
				continue
			}

			return t.fail(ClosedConnection, i)
		default:
			panic(fmt.Sprintf("BUG: unexpected tokenizer state: %d", t.state))
		}
	}

	switch t.state {
	case eURL:
		if mark < len(data) {
			t.handler.OnURL(data[mark:])
			t.emitted = true
		}
	case eStatusText:
		if mark < len(data) {
			t.handler.OnStatus(data[mark:])
		}
	case eHeaderField:
		if mark < len(data) {
			t.handler.OnHeaderField(data[mark:])
		}
	case eHeaderValue:
		end := len(data)
		if wsAt >= 0 {
			end = wsAt
			t.ows = append(t.ows, data[wsAt:]...)
		}

		if mark < end {
			t.handler.OnHeaderValue(data[mark:end])
			t.emitted = true
		}
	}

	return len(data)
}

// Pause stops (or resumes) the data consumption. If paused from inside a callback, Execute
// returns right after the callback, leaving the rest of data unconsumed. While paused,
// Execute consumes nothing and Errno reports Paused.
func (t *Tokenizer) Pause(paused bool) {
	if paused {
		if t.errno == OK {
			t.errno = Paused
		}
	} else if t.errno == Paused {
		t.errno = OK
	}
}

func (t *Tokenizer) Errno() Errno {
	return t.errno
}

func (t *Tokenizer) Mode() Mode {
	return t.mode
}

// Method returns the request method of the current message.
func (t *Tokenizer) Method() method.Method {
	return t.method
}

// StatusCode returns the response status code of the current message.
func (t *Tokenizer) StatusCode() status.Code {
	return t.statusCode
}

func (t *Tokenizer) Proto() proto.Proto {
	return t.proto
}

// Upgrade reports whether the current message switches the connection to another
// protocol. It's known since the headers are complete, while the message body may still
// follow.
func (t *Tokenizer) Upgrade() bool {
	return t.upgrade
}

// Upgraded reports whether the upgrading message is complete. The rest of the stream
// belongs to another protocol, so the tokenizer doesn't consume anything until Reset.
func (t *Tokenizer) Upgraded() bool {
	return t.state == eUpgraded
}

// ShouldKeepAlive reports whether the connection may carry another message after the
// current one.
func (t *Tokenizer) ShouldKeepAlive() bool {
	if t.proto == proto.HTTP11 {
		if t.flags&fConnectionClose != 0 {
			return false
		}
	} else if t.flags&fConnectionKeepAlive == 0 {
		return false
	}

	return !t.needsEOF()
}

func (t *Tokenizer) needsEOF() bool {
	switch {
	case t.mode == Request:
		return false
	case t.statusCode.Bodyless(), t.flags&fSkipBody != 0:
		return false
	case t.flags&(fChunked|fContentLength) != 0:
		return false
	default:
		return true
	}
}

func (t *Tokenizer) startState() parserState {
	if t.mode == Response {
		return eStartRes
	}

	return eStartReq
}

func (t *Tokenizer) resetMessage() {
	t.scratch.Clear()
	t.header = hOther
	t.flags = 0
	t.method = method.Unknown
	t.statusCode = 0
	t.proto = proto.Unknown
	t.contentLength = 0
	t.nread = 0
	t.digits = 0
	t.upgrade = false
	t.emitted = false
	t.untracked = false
	t.ows = t.ows[:0]
}

func (t *Tokenizer) fail(errno Errno, at int) int {
	t.errno = errno
	return at
}

func (t *Tokenizer) eof() {
	switch t.state {
	case eBodyIdentityEOF:
		t.state = eDead
		t.handler.OnMessageComplete()
	case eStartReq, eStartRes, eDead, eUpgraded:
	default:
		t.errno = InvalidEOFState
	}
}

func (t *Tokenizer) trackName(c byte) {
	if t.untracked {
		return
	}

	if t.scratch.SegmentLength() >= maxTrackedNameLength {
		t.untracked = true
		return
	}

	t.scratch.AppendByte(c)
}

func (t *Tokenizer) trackValue(c byte) bool {
	if t.header == hOther {
		return true
	}

	return t.scratch.AppendByte(c)
}

func (t *Tokenizer) classify() trackedHeader {
	if t.untracked {
		return hOther
	}

	name := uf.B2S(t.scratch.Finish())

	switch {
	case strcomp.EqualFold(name, "content-length"):
		return hContentLength
	case strcomp.EqualFold(name, "transfer-encoding"):
		return hTransferEncoding
	case strcomp.EqualFold(name, "connection"):
		return hConnection
	case strcomp.EqualFold(name, "upgrade"):
		return hUpgrade
	case strcomp.EqualFold(name, "trailer"):
		return hTrailer
	default:
		return hOther
	}
}

// valueDone completes the header value at data[i], which is either CR or LF. The value
// ends at data[end], trailing whitespace excluded.
func (t *Tokenizer) valueDone(data []byte, mark, end, i int) (consumed int, stop bool) {
	t.ows = t.ows[:0]

	if t.state == eHeaderValue && end > mark {
		t.handler.OnHeaderValue(data[mark:end])
		t.emitted = true
	}

	if !t.emitted {
		t.handler.OnHeaderValue(data[i:i])
	}

	if data[i] == '\r' {
		t.state = eHeaderValueLF
	} else {
		if errno := t.finishHeader(); errno != OK {
			return t.fail(errno, i), true
		}

		t.state = eHeaderFieldStart
	}

	return i + 1, t.errno != OK
}

func (t *Tokenizer) finishHeader() Errno {
	if t.header == hOther {
		return OK
	}

	value := uf.B2S(t.scratch.Finish())

	switch t.header {
	case hContentLength:
		length, ok := parseContentLength(value)
		if !ok {
			return InvalidContentLength
		}

		if t.flags&fContentLength != 0 && length != t.contentLength {
			return InvalidContentLength
		}

		t.contentLength = length
		t.flags |= fContentLength
	case hTransferEncoding:
		t.flags |= fTransferEncoding
		if strcomp.EqualFold(strcomp.LastToken(value), "chunked") {
			t.flags |= fChunked
		} else {
			t.flags &^= fChunked
		}
	case hConnection:
		if strcomp.HasToken(value, "close") {
			t.flags |= fConnectionClose
		}

		if strcomp.HasToken(value, "keep-alive") {
			t.flags |= fConnectionKeepAlive
		}
	case hUpgrade:
		t.flags |= fUpgrade
	case hTrailer:
		t.flags |= fTrailer
	}

	t.scratch.Clear()
	t.header = hOther

	return OK
}

// headersDone is called at the LF terminating the header section, located at data[i].
func (t *Tokenizer) headersDone(i int) (consumed int, stop bool) {
	if t.flags&fChunked != 0 && t.flags&fContentLength != 0 {
		return t.fail(UnexpectedContentLength, i), true
	}

	if t.mode == Request && t.flags&fTransferEncoding != 0 && t.flags&fChunked == 0 {
		// the request body length can't be determined
		return t.fail(InvalidTransferEncoding, i), true
	}

	t.upgrade = t.method == method.CONNECT ||
		(t.flags&fUpgrade != 0 && (t.mode == Request || t.statusCode == status.SwitchingProtocols))

	if t.handler.OnHeadersComplete() {
		t.flags |= fSkipBody
	}

	consumed = i + 1
	hasBody := t.flags&fChunked != 0 || (t.flags&fContentLength != 0 && t.contentLength > 0)

	switch {
	case t.upgrade && (t.method == method.CONNECT || t.flags&fSkipBody != 0 || !hasBody):
		return t.messageComplete(consumed)
	case t.flags&fSkipBody != 0:
		return t.messageComplete(consumed)
	case t.mode == Response && t.statusCode.Bodyless():
		return t.messageComplete(consumed)
	case t.flags&fChunked != 0:
		t.state = eBodyChunked
	case t.flags&fContentLength != 0:
		if t.contentLength == 0 {
			return t.messageComplete(consumed)
		}

		t.state = eBodyIdentity
	case t.mode == Request:
		return t.messageComplete(consumed)
	default:
		t.state = eBodyIdentityEOF
	}

	return consumed, t.errno != OK
}

func (t *Tokenizer) messageComplete(consumed int) (int, bool) {
	t.handler.OnMessageComplete()

	switch {
	case t.upgrade:
		t.state = eUpgraded
		return consumed, true
	case t.ShouldKeepAlive():
		t.state = t.startState()
	default:
		t.state = eDead
	}

	return consumed, t.errno != OK
}

func parseContentLength(value string) (length int64, ok bool) {
	var digits int

	for i := 0; i < len(value); i++ {
		switch c := value[i]; {
		case isDigit(c):
			if digits > 0 && i > 0 && (value[i-1] == ' ' || value[i-1] == '\t') {
				// digits separated by whitespace
				return 0, false
			}

			length = length*10 + int64(c-'0')
			if length > maxContentLength {
				return 0, false
			}

			digits++
		case c == ' ' || c == '\t':
		default:
			return 0, false
		}
	}

	return length, digits > 0
}
