package config

import (
	"time"
)

type (
	Headers struct {
		// Max is the capacity of the header accumulator in fields. As soon as the Max-th
		// field arrives while the previous Max-1 pairs are complete, the accumulated pairs
		// are flushed to the consumer and the new field becomes the first one of the next
		// batch. Must be at least 2.
		Max int
	}

	Tokenizer struct {
		// MaxHeaderSize limits the number of bytes the start line and the header section
		// may occupy together. Exceeding it results in tokenizer.HeaderOverflow.
		MaxHeaderSize int
		// MaxMethodLength limits the request method token. Longer tokens can't be
		// a known method anyway, so tokenizer.InvalidMethod is reported right away.
		MaxMethodLength int
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		ReadTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration
	}

	Metrics struct {
		// Namespace prefixes every exported Prometheus metric.
		Namespace string
	}
)

// Config holds settings used across the decoder, the tokenizer and the server.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Headers   Headers
	Tokenizer Tokenizer
	NET       NET
	Metrics   Metrics
}

// Default returns default config.
func Default() *Config {
	return &Config{
		Headers: Headers{
			// most of requests fit into a single batch, so the flush path is rarely taken.
			Max: 32,
		},
		Tokenizer: Tokenizer{
			MaxHeaderSize:   80 * 1024,
			MaxMethodLength: len("OPTIONS"),
		},
		NET: NET{
			ReadBufferSize:            4 * 1024,
			ReadTimeout:               90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
		},
		Metrics: Metrics{
			Namespace: "httpdec",
		},
	}
}
