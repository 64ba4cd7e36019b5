package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/indigo-web/httpdec/config"
	"github.com/indigo-web/httpdec/decoder"
	"github.com/indigo-web/httpdec/internal/server"
	"github.com/indigo-web/httpdec/sink"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(runWithArgs(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	file       string
	kind       decoder.Kind
	chunk      int
	headersMax int
	omitBody   bool
	listen     string
	autocert   string
	metrics    string
}

func parseArgs(args []string, stderr io.Writer) (opts options, ok bool) {
	fs := flag.NewFlagSet("httpdec", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "file", "", "decode a captured stream from the file, - for stdin")
	kind := fs.String("kind", "request", "kind of messages in the stream: request or response")
	fs.IntVar(&opts.chunk, "chunk", 0, "feed the decoder by chunks of this size, 0 for a whole file")
	fs.IntVar(&opts.headersMax, "headers-max", config.Default().Headers.Max, "header accumulator capacity")
	fs.BoolVar(&opts.omitBody, "omit-body", false, "print body lengths only")
	fs.StringVar(&opts.listen, "listen", "", "accept connections on the address and decode them")
	fs.StringVar(&opts.autocert, "autocert", "", "comma-separated domains to obtain TLS certificates for")
	fs.StringVar(&opts.metrics, "metrics", "", "serve Prometheus metrics on the address")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: httpdec (-file <capture> | -listen <addr>) [options]\n\n")
		_, _ = fmt.Fprintln(stderr, "Decodes HTTP/1.x streams into JSON lines.")
		_, _ = fmt.Fprintln(stderr)
		_, _ = fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, false
	}

	switch *kind {
	case "request":
		opts.kind = decoder.Request
	case "response":
		opts.kind = decoder.Response
	default:
		_, _ = fmt.Fprintf(stderr, "error: unknown kind %q\n", *kind)
		fs.Usage()
		return opts, false
	}

	if (opts.file == "") == (opts.listen == "") {
		_, _ = fmt.Fprintln(stderr, "error: exactly one of -file and -listen is required")
		fs.Usage()
		return opts, false
	}

	return opts, true
}

func runWithArgs(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, ok := parseArgs(args, stderr)
	if !ok {
		return 2
	}

	cfg := config.Default()
	cfg.Headers.Max = opts.headersMax
	logger := log.New(stderr, "httpdec: ", log.LstdFlags)

	if opts.file != "" {
		return decodeFile(cfg, opts, stdin, stdout, logger)
	}

	return serve(cfg, opts, stdout, logger)
}

func decodeFile(cfg *config.Config, opts options, stdin io.Reader, stdout io.Writer, logger *log.Logger) int {
	var (
		data []byte
		err  error
	)

	if opts.file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(opts.file)
	}

	if err != nil {
		logger.Printf("read capture: %s", err)
		return 1
	}

	out := sink.NewJSON(stdout)
	out.OmitBody = opts.omitBody
	dec, err := decoder.New(opts.kind, out, cfg)
	if err != nil {
		logger.Println(err)
		return 2
	}

	chunk := opts.chunk
	if chunk <= 0 {
		chunk = len(data)
	}

	for len(data) > 0 {
		n := min(chunk, len(data))
		consumed, err := dec.Execute(data[:n])
		switch {
		case errors.Is(err, decoder.ErrClosedConnection):
			// the rest of the capture doesn't belong to the connection
			logger.Printf("connection closed, %d bytes left undecoded", len(data)-consumed)
			return 0
		case err != nil:
			out.WriteError(err)
			return 1
		}

		if dec.Upgraded() {
			logger.Printf("connection upgraded, %d bytes left undecoded", len(data)-consumed)
			return 0
		}

		data = data[n:]
	}

	if err = dec.Finish(); err != nil {
		out.WriteError(err)
		return 1
	}

	if err = out.Err(); err != nil {
		logger.Printf("write: %s", err)
		return 1
	}

	return 0
}

// lockedWriter serializes the lines written by concurrent connections.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(b)
}

type connObserver struct {
	*sink.JSON
	id     string
	logger *log.Logger
}

func (c connObserver) OnClose(err error) {
	if err != nil {
		c.JSON.WriteError(err)
		c.logger.Printf("conn %s: %s", c.id, err)
	}
}

func serve(cfg *config.Config, opts options, stdout io.Writer, logger *log.Logger) int {
	out := &lockedWriter{w: stdout}
	srv := server.New(cfg, opts.kind, func(id string, remote net.Addr) server.Observer {
		j := sink.NewJSON(out)
		j.OmitBody = opts.omitBody
		j.Meta = map[string]string{
			"conn":   id,
			"remote": remote.String(),
		}

		return connObserver{JSON: j, id: id, logger: logger}
	})

	if opts.metrics != "" {
		reg := prometheus.NewRegistry()
		srv.Metrics(sink.NewMetrics(reg, cfg.Metrics.Namespace))

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			logger.Printf("serving metrics on %s", opts.metrics)
			if err := http.ListenAndServe(opts.metrics, mux); err != nil {
				logger.Printf("metrics: %s", err)
			}
		}()
	}

	var err error
	if opts.autocert != "" {
		err = srv.BindAutoTLS(opts.listen, strings.Split(opts.autocert, ",")...)
	} else {
		err = srv.Bind(opts.listen)
	}

	if err != nil {
		logger.Printf("bind: %s", err)
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Println("shutting down")
		srv.GracefulShutdown()
	}()

	logger.Printf("decoding %ss on %s", opts.kind, srv.Addr())
	if err = srv.Serve(); err != nil && !errors.Is(err, server.ErrShutdown) {
		logger.Printf("serve: %s", err)
		return 1
	}

	return 0
}
