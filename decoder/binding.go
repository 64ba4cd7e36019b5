package decoder

import (
	"github.com/indigo-web/httpdec/tokenizer"
)

// binding implements tokenizer.Handler on top of the Decoder, keeping the callbacks out of
// the Decoder's own method set.
type binding Decoder

var _ tokenizer.Handler = new(binding)

func (b *binding) OnMessageBegin() {
	b.session.Reset(b.session.kind)
}

func (b *binding) OnURL(p []byte) {
	b.session.AppendURL(p)
}

func (b *binding) OnStatus(p []byte) {
	b.session.AppendStatus(p)
}

func (b *binding) OnHeaderField(p []byte) {
	b.session.headers.AppendField(p)
}

func (b *binding) OnHeaderValue(p []byte) {
	b.session.headers.AppendValue(p)
}

func (b *binding) OnHeadersComplete() bool {
	s := &b.session
	var info HeadersInfo

	if s.flushed {
		// trailing pairs, if any
		s.headers.Flush(s, b.consumer)
	} else {
		info.Headers = s.headers.Batch()
		if s.kind == Request {
			info.URL = string(s.url)
			s.url = s.url[:0]
		}
	}

	s.headers.Reset()

	s.method = b.tokenizer.Method()
	s.statusCode = b.tokenizer.StatusCode()
	s.proto = b.tokenizer.Proto()
	s.upgrade = b.tokenizer.Upgrade()
	s.keepAlive = b.tokenizer.ShouldKeepAlive()

	switch s.kind {
	case Request:
		info.Method = s.method
	case Response:
		info.Status = s.statusCode
		info.StatusText = string(s.statusText)
	}

	info.Proto = s.proto
	info.Upgrade = s.upgrade
	info.KeepAlive = s.keepAlive

	return b.consumer.OnHeadersComplete(info)
}

func (b *binding) OnBody(p []byte) {
	b.consumer.OnBody(b.session.View(), b.session.offset(p), len(p))
}

func (b *binding) OnMessageComplete() {
	b.consumer.OnMessageComplete()
}
