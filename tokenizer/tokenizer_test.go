package tokenizer

import (
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/httpdec/config"
	"github.com/indigo-web/httpdec/http/method"
	"github.com/indigo-web/httpdec/http/proto"
	"github.com/indigo-web/httpdec/http/status"
	"github.com/stretchr/testify/require"
)

type event struct {
	Kind string
	Data string
}

// recorder glues consecutive fragments of the same token together, so the result doesn't
// depend on how the input was split.
type recorder struct {
	events   []event
	skipBody bool
	// pauseOn pauses the tokenizer from inside the callback of the given kind.
	pauseOn string
	t       *Tokenizer
	// fragments counts the calls, not the glued events.
	fragments map[string]int
}

func (r *recorder) add(kind string, data []byte) {
	if r.fragments == nil {
		r.fragments = make(map[string]int)
	}

	r.fragments[kind]++

	if n := len(r.events); n > 0 && r.events[n-1].Kind == kind && kind != "begin" && kind != "done" &&
		kind != "complete" {
		r.events[n-1].Data += string(data)
	} else {
		r.events = append(r.events, event{kind, string(data)})
	}

	if r.pauseOn == kind {
		r.t.Pause(true)
	}
}

func (r *recorder) OnMessageBegin()        { r.add("begin", nil) }
func (r *recorder) OnURL(b []byte)         { r.add("url", b) }
func (r *recorder) OnStatus(b []byte)      { r.add("status", b) }
func (r *recorder) OnHeaderField(b []byte) { r.add("field", b) }
func (r *recorder) OnHeaderValue(b []byte) { r.add("value", b) }
func (r *recorder) OnBody(b []byte)        { r.add("body", b) }
func (r *recorder) OnMessageComplete()     { r.add("complete", nil) }
func (r *recorder) OnHeadersComplete() bool {
	r.add("done", nil)
	return r.skipBody
}

func newTokenizer(mode Mode) (*Tokenizer, *recorder) {
	rec := new(recorder)
	t := New(mode, rec, config.Default().Tokenizer)
	rec.t = t

	return t, rec
}

func splitIntoParts(data []byte, n int) (parts [][]byte) {
	for i := 0; i < len(data); i += n {
		end := i + n
		if end > len(data) {
			end = len(data)
		}

		parts = append(parts, data[i:end])
	}

	return parts
}

func feedPartially(t *testing.T, tok *Tokenizer, data []byte, n int) {
	for _, part := range splitIntoParts(data, n) {
		require.Equal(t, len(part), tok.Execute(part), tok.Errno().String())
	}
}

func TestRequest(t *testing.T) {
	t.Run("simple GET", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		data := []byte("GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, OK, tok.Errno())
		require.Equal(t, []event{
			{"begin", ""},
			{"url", "/x"},
			{"field", "Host"},
			{"value", "h"},
			{"done", ""},
			{"complete", ""},
		}, rec.events)
		require.Equal(t, method.GET, tok.Method())
		require.Equal(t, proto.HTTP11, tok.Proto())
		require.True(t, tok.ShouldKeepAlive())
		require.False(t, tok.Upgrade())
	})

	t.Run("any split points", func(t *testing.T) {
		data := []byte("POST /hello%20world?a=b HTTP/1.1\r\nContent-Length: 13\r\n" +
			"X-Value: " + uniuri.NewLen(100) + "\r\n\r\nHello, World!")
		whole, wholeRec := newTokenizer(Request)
		require.Equal(t, len(data), whole.Execute(data))

		for n := 1; n < len(data); n++ {
			tok, rec := newTokenizer(Request)
			feedPartially(t, tok, data, n)
			require.Equal(t, wholeRec.events, rec.events, "split by %d", n)
		}
	})

	t.Run("only LF", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		data := []byte("GET / HTTP/1.1\nHello: World!\n\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, "World!", rec.events[3].Data)
		require.Equal(t, "complete", rec.events[len(rec.events)-1].Kind)
	})

	t.Run("leading CRLF", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		data := []byte("\r\n\r\nGET / HTTP/1.1\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Len(t, rec.events, 4)
	})

	t.Run("empty and whitespaced values", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		data := []byte("GET / HTTP/1.1\r\nEmpty:\r\nSpaced: \t  value\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, []event{
			{"begin", ""},
			{"url", "/"},
			{"field", "Empty"},
			{"value", ""},
			{"field", "Spaced"},
			{"value", "value"},
			{"done", ""},
			{"complete", ""},
		}, rec.events)
		require.Equal(t, 1, rec.fragments["url"])
	})

	t.Run("empty value split among calls", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		feedPartially(t, tok, []byte("GET / HTTP/1.1\r\nEmpty:  \r\n\r\n"), 1)
		require.Equal(t, 1, rec.fragments["value"])
		require.Equal(t, 1, rec.fragments["complete"])
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		data := []byte("GET / HTTP/1.1\r\nHost: h \t\r\nInner: a  b \r\nBlank: \t \r\n" +
			"Tail: x\t\nLast: y  \r\n\r\n")
		want := []event{
			{"begin", ""},
			{"url", "/"},
			{"field", "Host"},
			{"value", "h"},
			{"field", "Inner"},
			{"value", "a  b"},
			{"field", "Blank"},
			{"value", ""},
			{"field", "Tail"},
			{"value", "x"},
			{"field", "Last"},
			{"value", "y"},
			{"done", ""},
			{"complete", ""},
		}

		tok, rec := newTokenizer(Request)
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, want, rec.events)

		for n := 1; n < len(data); n++ {
			tok, rec := newTokenizer(Request)
			feedPartially(t, tok, data, n)
			require.Equal(t, want, rec.events, "split by %d", n)
		}
	})

	t.Run("pipelined chunked messages", func(t *testing.T) {
		message := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
			"5\r\nHello\r\n7\r\n, World\r\n0\r\n\r\n"
		data := []byte(message + message)

		for n := 1; n <= len(data); n++ {
			tok, rec := newTokenizer(Request)
			feedPartially(t, tok, data, n)
			require.Equal(t, OK, tok.Errno())
			require.Equal(t, 2, rec.fragments["begin"], "split by %d", n)
			require.Equal(t, 2, rec.fragments["complete"], "split by %d", n)

			var bodies []string
			for _, e := range rec.events {
				if e.Kind == "body" {
					bodies = append(bodies, e.Data)
				}
			}

			require.Equal(t, []string{"Hello, World", "Hello, World"}, bodies, "split by %d", n)
		}
	})

	t.Run("pipelining", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		data := []byte("GET /a HTTP/1.1\r\n\r\nPOST /b HTTP/1.1\r\nContent-Length: 2\r\n\r\nhiGET /c HTTP/1.1\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, 3, rec.fragments["begin"])
		require.Equal(t, 3, rec.fragments["complete"])
		require.Equal(t, method.GET, tok.Method())
	})

	t.Run("connection close", func(t *testing.T) {
		tok, _ := newTokenizer(Request)
		data := []byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n\r\nGET")
		require.Equal(t, len(data)-3, tok.Execute(data))
		require.Equal(t, ClosedConnection, tok.Errno())
	})

	t.Run("HTTP/1.0 keep-alive", func(t *testing.T) {
		tok, _ := newTokenizer(Request)
		tok.Execute([]byte("GET / HTTP/1.0\r\n\r\n"))
		require.False(t, tok.ShouldKeepAlive())

		tok, _ = newTokenizer(Request)
		tok.Execute([]byte("GET / HTTP/1.0\r\nConnection: Keep-Alive\r\n\r\n"))
		require.True(t, tok.ShouldKeepAlive())
	})

	t.Run("chunked body", func(t *testing.T) {
		data := []byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
			"5\r\nHello\r\n7\r\n, World\r\n0\r\n\r\n")
		tok, rec := newTokenizer(Request)
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, OK, tok.Errno())

		var body strings.Builder
		for _, e := range rec.events {
			if e.Kind == "body" {
				body.WriteString(e.Data)
			}
		}

		require.Equal(t, "Hello, World", body.String())
		require.Equal(t, "complete", rec.events[len(rec.events)-1].Kind)
	})

	t.Run("upgrade", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		head := "GET /ws HTTP/1.1\r\nConnection: upgrade\r\nUpgrade: websocket\r\n\r\n"
		data := []byte(head + "\x81\x05hello")
		require.Equal(t, len(head), tok.Execute(data))
		require.Equal(t, OK, tok.Errno())
		require.True(t, tok.Upgrade())
		require.Equal(t, "complete", rec.events[len(rec.events)-1].Kind)
		require.Zero(t, tok.Execute(data[len(head):]))
		require.Zero(t, tok.Execute(nil))
		require.Equal(t, OK, tok.Errno())
	})

	t.Run("upgrade with body", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		head := "POST /x HTTP/1.1\r\nUpgrade: h2c\r\nContent-Length: 5\r\n\r\n"
		require.Equal(t, len(head)+2, tok.Execute([]byte(head+"he")))
		require.True(t, tok.Upgrade())
		require.False(t, tok.Upgraded())

		require.Equal(t, 3, tok.Execute([]byte("lloPRI")))
		require.Equal(t, OK, tok.Errno())
		require.True(t, tok.Upgraded())
		require.Equal(t, "complete", rec.events[len(rec.events)-1].Kind)
		require.Equal(t, "hello", rec.events[len(rec.events)-2].Data)
	})

	t.Run("CONNECT", func(t *testing.T) {
		tok, _ := newTokenizer(Request)
		head := "CONNECT example.com:443 HTTP/1.1\r\n\r\n"
		require.Equal(t, len(head), tok.Execute([]byte(head+"tunnel")))
		require.True(t, tok.Upgrade())
	})
}

func TestResponse(t *testing.T) {
	t.Run("with body", func(t *testing.T) {
		tok, rec := newTokenizer(Response)
		data := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, []event{
			{"begin", ""},
			{"status", "OK"},
			{"field", "Content-Length"},
			{"value", "5"},
			{"done", ""},
			{"body", "hello"},
			{"complete", ""},
		}, rec.events)
		require.Equal(t, status.OK, tok.StatusCode())
	})

	t.Run("without status text", func(t *testing.T) {
		tok, rec := newTokenizer(Response)
		data := []byte("HTTP/1.1 204\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, status.NoContent, tok.StatusCode())
		require.Zero(t, rec.fragments["status"])
		require.Equal(t, 1, rec.fragments["complete"])
	})

	t.Run("body until EOF", func(t *testing.T) {
		tok, rec := newTokenizer(Response)
		data := []byte("HTTP/1.0 200 OK\r\n\r\nsome body")
		require.Equal(t, len(data), tok.Execute(data))
		require.Zero(t, rec.fragments["complete"])
		require.False(t, tok.ShouldKeepAlive())
		require.Equal(t, 4, tok.Execute([]byte(" end")))
		require.Zero(t, tok.Execute(nil))
		require.Equal(t, OK, tok.Errno())
		require.Equal(t, 1, rec.fragments["complete"])
		require.Equal(t, event{"body", "some body end"}, rec.events[len(rec.events)-2])
	})

	t.Run("skip body", func(t *testing.T) {
		tok, rec := newTokenizer(Response)
		rec.skipBody = true
		data := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nHTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, 2, rec.fragments["complete"])
		require.Zero(t, rec.fragments["body"])
	})

	t.Run("switching protocols", func(t *testing.T) {
		tok, rec := newTokenizer(Response)
		head := "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\n\r\n"
		require.Equal(t, len(head), tok.Execute([]byte(head+"\x00\x01\x02")))
		require.True(t, tok.Upgrade())
		require.Equal(t, "Switching Protocols", rec.events[1].Data)
	})

	t.Run("upgrade header is informational on other codes", func(t *testing.T) {
		tok, _ := newTokenizer(Response)
		data := []byte("HTTP/1.1 426 Upgrade Required\r\nUpgrade: h2c\r\nContent-Length: 0\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.False(t, tok.Upgrade())
	})
}

func TestErrors(t *testing.T) {
	tcs := []struct {
		Name  string
		Mode  Mode
		Data  string
		Errno Errno
	}{
		{"unknown method", Request, "FOO / HTTP/1.1\r\n\r\n", InvalidMethod},
		{"too long method", Request, "GETGETGETGET / HTTP/1.1\r\n\r\n", InvalidMethod},
		{"empty url", Request, "GET  HTTP/1.1\r\n\r\n", InvalidURL},
		{"control char in url", Request, "GET /\x01 HTTP/1.1\r\n\r\n", InvalidURL},
		{"unsupported version", Request, "GET / HTTP/2.0\r\n\r\n", InvalidVersion},
		{"too long version", Request, "GET / HTTP/1.11\r\n\r\n", InvalidVersion},
		{"bare CR", Request, "GET / HTTP/1.1\rX", InvalidConstant},
		{"bad header token", Request, "GET / HTTP/1.1\r\nBad Header: x\r\n\r\n", InvalidHeaderToken},
		{"empty header name", Request, "GET / HTTP/1.1\r\n: x\r\n\r\n", InvalidHeaderToken},
		{"bad content length", Request, "POST / HTTP/1.1\r\nContent-Length: 1x\r\n\r\n", InvalidContentLength},
		{"split content length", Request, "POST / HTTP/1.1\r\nContent-Length: 1 2\r\n\r\n", InvalidContentLength},
		{
			"mismatching content lengths", Request,
			"POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\n", InvalidContentLength,
		},
		{
			"chunked with content length", Request,
			"POST / HTTP/1.1\r\nContent-Length: 1\r\nTransfer-Encoding: chunked\r\n\r\n", UnexpectedContentLength,
		},
		{
			"not chunked request", Request,
			"POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n\r\n", InvalidTransferEncoding,
		},
		{"bad response start", Response, "XTTP/1.1 200 OK\r\n\r\n", InvalidConstant},
		{"bad status code", Response, "HTTP/1.1 2x0 OK\r\n\r\n", InvalidStatus},
		{"status below 100", Response, "HTTP/1.1 099 OK\r\n\r\n", InvalidStatus},
		{"four digits status", Response, "HTTP/1.1 2000 OK\r\n\r\n", InvalidStatus},
	}

	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			tok, _ := newTokenizer(tc.Mode)
			n := tok.Execute([]byte(tc.Data))
			require.Less(t, n, len(tc.Data))
			require.Equal(t, tc.Errno, tok.Errno(), tok.Errno().String())
			require.Zero(t, tok.Execute([]byte(tc.Data)), "must not consume after an error")
		})
	}

	t.Run("header overflow", func(t *testing.T) {
		cfg := config.Default().Tokenizer
		cfg.MaxHeaderSize = 64
		tok := New(Request, new(recorder), cfg)
		data := []byte("GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 64) + "\r\n\r\n")
		require.Less(t, tok.Execute(data), len(data))
		require.Equal(t, HeaderOverflow, tok.Errno())
	})

	t.Run("tracked value overflow", func(t *testing.T) {
		tok, _ := newTokenizer(Request)
		data := []byte("GET / HTTP/1.1\r\nConnection: " + strings.Repeat("a", maxTrackedNameLength+maxTrackedValueLength) + "\r\n\r\n")
		require.Less(t, tok.Execute(data), len(data))
		require.Equal(t, HeaderOverflow, tok.Errno())
	})

	t.Run("EOF in the middle", func(t *testing.T) {
		tok, _ := newTokenizer(Request)
		tok.Execute([]byte("GET / HTT"))
		require.Zero(t, tok.Execute(nil))
		require.Equal(t, InvalidEOFState, tok.Errno())
		require.Equal(t, "INVALID_EOF_STATE", tok.Errno().String())
	})

	t.Run("reset clears the error", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		require.Equal(t, 3, tok.Execute([]byte("FOO ")))
		require.Equal(t, InvalidMethod, tok.Errno())
		tok.Reset(Request)
		require.Equal(t, OK, tok.Errno())
		data := []byte("GET / HTTP/1.1\r\n\r\n")
		require.Equal(t, len(data), tok.Execute(data))
		require.Equal(t, 1, rec.fragments["complete"])
	})
}

func TestPause(t *testing.T) {
	t.Run("from callback", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		rec.pauseOn = "done"
		first := "GET /a HTTP/1.1\r\n\r\n"
		data := []byte(first + "GET /b HTTP/1.1\r\n\r\n")
		require.Equal(t, len(first), tok.Execute(data))
		require.Equal(t, Paused, tok.Errno())
		// the message itself is complete, as no more bytes were needed
		require.Equal(t, 1, rec.fragments["complete"])

		require.Zero(t, tok.Execute(data[len(first):]))
		tok.Pause(false)
		rec.pauseOn = ""
		require.Equal(t, len(data)-len(first), tok.Execute(data[len(first):]))
		require.Equal(t, 2, rec.fragments["complete"])
	})

	t.Run("in body", func(t *testing.T) {
		tok, rec := newTokenizer(Request)
		head := "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\n"
		rec.pauseOn = "body"
		require.Equal(t, len(head)+5, tok.Execute([]byte(head+"01234")))
		tok.Pause(false)
		require.Equal(t, 5, tok.Execute([]byte("56789")))
		require.Equal(t, 1, rec.fragments["complete"])
	})

	t.Run("between calls", func(t *testing.T) {
		tok, _ := newTokenizer(Request)
		data := []byte("GET / HTTP/1.1\r\n\r\n")
		half := len(data) / 2
		require.Equal(t, half, tok.Execute(data[:half]))
		tok.Pause(true)
		require.Zero(t, tok.Execute(data[half:]))
		require.Equal(t, Paused, tok.Errno())
		tok.Pause(false)
		require.Equal(t, len(data)-half, tok.Execute(data[half:]))
	})
}
