package sink

import (
	"errors"
	"io"

	"github.com/indigo-web/httpdec/decoder"
	"github.com/indigo-web/httpdec/http/method"
	json "github.com/json-iterator/go"
)

type jsonMessage struct {
	URL        string   `json:"url,omitempty"`
	Method     string   `json:"method,omitempty"`
	Status     uint16   `json:"status,omitempty"`
	StatusText string   `json:"status_text,omitempty"`
	Proto      string   `json:"proto"`
	Headers    []string `json:"headers"`
	Upgrade    bool     `json:"upgrade,omitempty"`
	KeepAlive  bool     `json:"keep_alive"`
	BodyLength int      `json:"body_length"`
	Body       string   `json:"body,omitempty"`
}

type jsonError struct {
	Error string `json:"error"`
	Code  uint8  `json:"code,omitempty"`
}

// JSON is a decoder.Consumer writing every completed message as a single JSON line.
type JSON struct {
	Recorder
	// Meta is attached to every line, if set. For example, the connection ID.
	Meta map[string]string
	// OmitBody writes only the body length.
	OmitBody bool

	w   io.Writer
	err error
}

func NewJSON(w io.Writer) *JSON {
	j := &JSON{w: w}
	j.OnMessage = j.writeMessage

	return j
}

func (j *JSON) writeMessage(msg Message) {
	line := jsonMessage{
		URL:        msg.URL,
		Status:     uint16(msg.Status),
		StatusText: msg.StatusText,
		Proto:      msg.Proto.String(),
		Headers:    msg.Headers,
		Upgrade:    msg.Upgrade,
		KeepAlive:  msg.KeepAlive,
		BodyLength: len(msg.Body),
	}

	if msg.Method != method.Unknown {
		line.Method = msg.Method.String()
	}

	if line.Headers == nil {
		line.Headers = []string{}
	}

	if !j.OmitBody {
		line.Body = string(msg.Body)
	}

	j.write(line)
}

// WriteError writes the decoding error as a separate line.
func (j *JSON) WriteError(err error) {
	line := jsonError{Error: err.Error()}

	var perr decoder.ParseError
	if errors.As(err, &perr) {
		line.Error = perr.Name
		line.Code = uint8(perr.Code)
	}

	j.write(line)
}

// Err returns the first error occurred while writing. After that, nothing is written
// anymore.
func (j *JSON) Err() error {
	return j.err
}

func (j *JSON) write(model any) {
	if j.err != nil {
		return
	}

	stream := json.ConfigDefault.BorrowStream(j.w)
	if len(j.Meta) > 0 {
		stream.WriteVal(struct {
			Meta map[string]string `json:"meta"`
			Line any               `json:"event"`
		}{j.Meta, model})
	} else {
		stream.WriteVal(model)
	}

	stream.WriteRaw("\n")
	j.err = stream.Flush()
	if j.err == nil {
		j.err = stream.Error
	}

	json.ConfigDefault.ReturnStream(stream)
}
