package sink

import (
	"github.com/indigo-web/httpdec/decoder"
	"github.com/indigo-web/httpdec/http/method"
	"github.com/indigo-web/httpdec/http/proto"
	"github.com/indigo-web/httpdec/http/status"
	"github.com/indigo-web/httpdec/internal/strcomp"
)

// Message is a whole decoded message, glued together from the decoder events.
type Message struct {
	// Headers is a flat list of pairs: field0, value0, field1, value1...
	Headers    []string
	URL        string
	Method     method.Method
	Status     status.Code
	StatusText string
	Proto      proto.Proto
	Upgrade    bool
	KeepAlive  bool
	Body       []byte
}

// Header returns the value of the first header with the given name. Names are compared
// case-insensitively.
func (m Message) Header(name string) (value string, found bool) {
	for i := 0; i+1 < len(m.Headers); i += 2 {
		if strcomp.EqualFold(m.Headers[i], name) {
			return m.Headers[i+1], true
		}
	}

	return "", false
}

// Recorder is a decoder.Consumer collecting whole messages. Body fragments are copied, so
// messages stay valid after Execute returns.
type Recorder struct {
	// Messages holds completed messages, unless OnMessage is set.
	Messages []Message
	// OnMessage receives every completed message instead of appending it to Messages.
	OnMessage func(Message)
	// SkipBody is consulted when the headers are complete. Responses to HEAD requests
	// must be decoded with it returning true.
	SkipBody func(info decoder.HeadersInfo) bool

	current Message
}

var _ decoder.Consumer = new(Recorder)

func (r *Recorder) OnHeaders(headers []string, url string) {
	r.current.Headers = append(r.current.Headers, headers...)
	if len(url) > 0 {
		r.current.URL = url
	}
}

func (r *Recorder) OnHeadersComplete(info decoder.HeadersInfo) bool {
	r.current.Headers = append(r.current.Headers, info.Headers...)
	if len(info.URL) > 0 {
		r.current.URL = info.URL
	}

	r.current.Method = info.Method
	r.current.Status = info.Status
	r.current.StatusText = info.StatusText
	r.current.Proto = info.Proto
	r.current.Upgrade = info.Upgrade
	r.current.KeepAlive = info.KeepAlive

	return r.SkipBody != nil && r.SkipBody(info)
}

func (r *Recorder) OnBody(view decoder.View, offset, length int) {
	r.current.Body = append(r.current.Body, view.Slice(offset, length)...)
}

func (r *Recorder) OnMessageComplete() {
	msg := r.current
	r.current = Message{}

	if r.OnMessage != nil {
		r.OnMessage(msg)
		return
	}

	r.Messages = append(r.Messages, msg)
}

// Reset drops the incomplete message, if any. Must be called together with
// decoder.Reinitialize.
func (r *Recorder) Reset() {
	r.current = Message{}
}
