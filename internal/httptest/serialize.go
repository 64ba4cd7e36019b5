package httptest

import (
	"strconv"

	"github.com/indigo-web/httpdec/http/method"
	"github.com/indigo-web/httpdec/http/proto"
	"github.com/indigo-web/httpdec/http/status"
)

// Message describes a raw HTTP/1.x message to be generated for tests. It's a request if
// Method is set, a response otherwise.
type Message struct {
	Method     method.Method
	Target     string
	Proto      proto.Proto
	Status     status.Code
	StatusText string
	// Headers is a flat list of pairs: field0, value0, field1, value1...
	Headers []string
	Body    string
	// ChunkSize enables chunked encoding of the body, splitting it by chunks of
	// the given size. Otherwise, Content-Length is set if the body isn't empty.
	ChunkSize int
}

func Request(m method.Method, target string, headers ...string) Message {
	return Message{
		Method:  m,
		Target:  target,
		Proto:   proto.HTTP11,
		Headers: headers,
	}
}

func Response(code status.Code, text string, headers ...string) Message {
	return Message{
		Proto:      proto.HTTP11,
		Status:     code,
		StatusText: text,
		Headers:    headers,
	}
}

func (m Message) WithBody(body string) Message {
	m.Body = body
	return m
}

func (m Message) Chunked(size int) Message {
	m.ChunkSize = size
	return m
}

func (m Message) String() string {
	var buff []byte

	if m.Method != method.Unknown {
		buff = append(buff, m.Method.String()...)
		buff = append(buff, ' ')
		buff = append(buff, m.Target...)
		buff = append(buff, ' ')
		buff = append(buff, m.Proto.String()...)
	} else {
		buff = append(buff, m.Proto.String()...)
		buff = append(buff, ' ')
		buff = strconv.AppendUint(buff, uint64(m.Status), 10)
		buff = append(buff, ' ')
		buff = append(buff, m.StatusText...)
	}

	buff = append(buff, '\r', '\n')

	for i := 0; i+1 < len(m.Headers); i += 2 {
		buff = header(buff, m.Headers[i], m.Headers[i+1])
	}

	switch {
	case m.ChunkSize > 0:
		buff = header(buff, "Transfer-Encoding", "chunked")
	case len(m.Body) > 0:
		buff = header(buff, "Content-Length", strconv.Itoa(len(m.Body)))
	}

	buff = append(buff, '\r', '\n')

	if m.ChunkSize > 0 {
		return string(chunked(buff, m.Body, m.ChunkSize))
	}

	return string(append(buff, m.Body...))
}

func header(b []byte, key, value string) []byte {
	b = append(b, key...)
	b = append(b, ':', ' ')
	b = append(b, value...)

	return append(b, '\r', '\n')
}

func chunked(b []byte, body string, size int) []byte {
	for len(body) > 0 {
		n := min(size, len(body))
		b = strconv.AppendUint(b, uint64(n), 16)
		b = append(b, '\r', '\n')
		b = append(b, body[:n]...)
		b = append(b, '\r', '\n')
		body = body[n:]
	}

	return append(b, "0\r\n\r\n"...)
}
