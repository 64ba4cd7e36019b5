package decoder

import (
	"fmt"

	"github.com/indigo-web/httpdec/config"
	"github.com/indigo-web/httpdec/tokenizer"
)

// Kind tells whether requests or responses are decoded.
type Kind uint8

const (
	Request Kind = iota + 1
	Response
)

func (k Kind) String() string {
	return k.mode().String()
}

func (k Kind) mode() tokenizer.Mode {
	switch k {
	case Request:
		return tokenizer.Request
	case Response:
		return tokenizer.Response
	default:
		return 0
	}
}

// Decoder turns a stream of byte chunks into message events, delivered to the Consumer.
// A single Decoder serves a single connection and must not be used concurrently.
type Decoder struct {
	consumer  Consumer
	tokenizer *tokenizer.Tokenizer
	session   session
	executing bool
}

// New returns a decoder of messages of the given kind. Passing nil cfg is the same as
// passing config.Default().
func New(kind Kind, consumer Consumer, cfg *config.Config) (*Decoder, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	switch {
	case kind != Request && kind != Response:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrBadConfig, kind)
	case cfg.Headers.Max < 2:
		return nil, fmt.Errorf("%w: Headers.Max must be at least 2, got %d", ErrBadConfig, cfg.Headers.Max)
	case consumer == nil:
		return nil, fmt.Errorf("%w: no consumer", ErrBadConfig)
	}

	d := &Decoder{
		consumer: consumer,
		session:  newSession(kind, cfg.Headers.Max),
	}
	d.session.headers.onFull = d.flush
	d.tokenizer = tokenizer.New(kind.mode(), (*binding)(d), cfg.Tokenizer)

	return d, nil
}

// Reinitialize resets the decoder to decode a new stream of messages of the given kind.
// It may be called between messages or after an error, but not from a consumer callback.
func (d *Decoder) Reinitialize(kind Kind) {
	if d.executing {
		panic("decoder: Reinitialize is called from inside Execute")
	}

	if kind != Request && kind != Response {
		panic(fmt.Sprintf("decoder: unknown kind %d", kind))
	}

	d.session.Reset(kind)
	d.tokenizer.Reset(kind.mode())
}

// Execute decodes the buffer and returns the number of consumed bytes. Any tokenizer error,
// including a pause, results in ParseError. Otherwise, less than the whole buffer is consumed
// only if an upgrading message was completed: the rest of the buffer belongs to the new
// protocol.
//
// Empty buffer is a no-op, use Finish to signal the end of stream.
func (d *Decoder) Execute(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	d.enter()
	d.session.Borrow(buf)
	defer d.leave()

	n := d.tokenizer.Execute(buf)
	if errno := d.tokenizer.Errno(); errno != tokenizer.OK {
		return n, newParseError(errno)
	}

	if n != len(buf) && !d.tokenizer.Upgraded() {
		panic("BUG: tokenizer stopped without an error")
	}

	return n, nil
}

// Finish signals the end of stream. Messages, delimited by the connection close, are
// completed here. Headers, accumulated but not flushed yet, are NOT flushed implicitly.
func (d *Decoder) Finish() error {
	d.enter()
	defer d.leave()

	d.tokenizer.Execute(nil)
	if errno := d.tokenizer.Errno(); errno != tokenizer.OK {
		return newParseError(errno)
	}

	return nil
}

// Pause stops the data consumption. Being called from a consumer callback, it makes
// Execute return right after the callback. Until Resume, Execute consumes nothing and
// returns ErrPaused.
func (d *Decoder) Pause() {
	d.tokenizer.Pause(true)
}

func (d *Decoder) Resume() {
	d.tokenizer.Pause(false)
}

func (d *Decoder) Kind() Kind {
	return d.session.kind
}

// Upgraded reports whether a message switching the connection to another protocol was
// completely decoded. The decoder consumes nothing after that until Reinitialize.
func (d *Decoder) Upgraded() bool {
	return d.tokenizer.Upgraded()
}

func (d *Decoder) enter() {
	if d.executing {
		panic("decoder: Execute or Finish is called from inside Execute")
	}

	d.executing = true
}

func (d *Decoder) leave() {
	d.session.Release()
	d.executing = false
}

func (d *Decoder) flush() {
	d.session.headers.Flush(&d.session, d.consumer)
}
