package decoder

import (
	"github.com/indigo-web/httpdec/http/method"
	"github.com/indigo-web/httpdec/http/proto"
	"github.com/indigo-web/httpdec/http/status"
)

// Consumer receives decoded messages. All the methods are called synchronously from inside
// Execute or Finish.
type Consumer interface {
	// OnHeaders delivers a batch of header pairs, flushed before the header section was
	// complete, as a flat list: field0, value0, field1, value1... The url is non-empty only
	// in the first batch of a request.
	OnHeaders(headers []string, url string)
	// OnHeadersComplete is called once per message. Returning true makes the decoder skip
	// the body, which is required for responses to HEAD requests.
	OnHeadersComplete(info HeadersInfo) (skipBody bool)
	// OnBody passes a body fragment as view.Slice(offset, length). The view is valid
	// only until the callback returns.
	OnBody(view View, offset, length int)
	OnMessageComplete()
}

// HeadersInfo describes a message which headers are complete. Headers and URL are set
// only if no batch was flushed via OnHeaders before, otherwise they were delivered there.
type HeadersInfo struct {
	Headers []string
	// URL is set for requests only.
	URL string
	// Method is set for requests only.
	Method method.Method
	// Status and StatusText are set for responses only.
	Status     status.Code
	StatusText string
	Proto      proto.Proto
	// Upgrade means that the bytes after the message belong to another protocol and
	// won't be consumed.
	Upgrade   bool
	KeepAlive bool
}

// Funcs adapts separate functions to the Consumer interface. Nil functions are no-op.
type Funcs struct {
	Headers         func(headers []string, url string)
	HeadersComplete func(info HeadersInfo) (skipBody bool)
	Body            func(view View, offset, length int)
	MessageComplete func()
}

var _ Consumer = Funcs{}

func (f Funcs) OnHeaders(headers []string, url string) {
	if f.Headers != nil {
		f.Headers(headers, url)
	}
}

func (f Funcs) OnHeadersComplete(info HeadersInfo) bool {
	if f.HeadersComplete != nil {
		return f.HeadersComplete(info)
	}

	return false
}

func (f Funcs) OnBody(view View, offset, length int) {
	if f.Body != nil {
		f.Body(view, offset, length)
	}
}

func (f Funcs) OnMessageComplete() {
	if f.MessageComplete != nil {
		f.MessageComplete()
	}
}
