package server

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/httpdec/config"
	"github.com/indigo-web/httpdec/decoder"
	"github.com/indigo-web/httpdec/internal/timer"
	"github.com/indigo-web/httpdec/sink"
)

// ErrShutdown is returned by Serve after Stop or GracefulShutdown.
var ErrShutdown = errors.New("server is shut down")

// Observer receives the events of a single connection.
type Observer interface {
	decoder.Consumer
	// OnClose is called once the connection is done with. The error is nil if the stream
	// ended cleanly or was upgraded to another protocol.
	OnClose(err error)
}

// NewObserver is called for every accepted connection. The id is unique among connections.
type NewObserver func(id string, remote net.Addr) Observer

// Server accepts connections and decodes everything received as a stream of HTTP messages
// of a single kind. Observers must not pause their decoders.
type Server struct {
	cfg         *config.Config
	kind        decoder.Kind
	newObserver NewObserver
	metrics     *sink.Metrics

	l     listener
	wg    sync.WaitGroup
	stop  atomic.Bool
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func New(cfg *config.Config, kind decoder.Kind, newObserver NewObserver) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Server{
		cfg:         cfg,
		kind:        kind,
		newObserver: newObserver,
		conns:       map[net.Conn]struct{}{},
	}
}

// Metrics makes the server count the events and the errors of every connection.
func (s *Server) Metrics(m *sink.Metrics) *Server {
	s.metrics = m
	return s
}

func (s *Server) Bind(addr string) (err error) {
	s.l, err = bindTCP(addr)
	return err
}

func (s *Server) BindTLS(addr string, cfg *tls.Config) (err error) {
	s.l, err = bindTLS(addr, cfg)
	return err
}

// BindAutoTLS binds a TLS listener with certificates issued by Let's Encrypt.
func (s *Server) BindAutoTLS(addr string, domains ...string) error {
	return s.BindTLS(addr, autocertConfig(domains...))
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.l.Addr()
}

// Serve runs the accept loop. It returns ErrShutdown after all the connections are done,
// if the server was stopped, or the accept error otherwise.
func (s *Server) Serve() error {
	defer s.l.Close()

	for !s.stop.Load() {
		// timer.Now() may lag behind for longer than a short interrupt period
		err := s.l.SetDeadline(time.Now().Add(s.cfg.NET.AcceptLoopInterruptPeriod))
		if err != nil {
			return err
		}

		conn, err := s.l.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			if s.stop.Load() {
				break
			}

			return err
		}

		if !s.track(conn) {
			continue
		}

		s.wg.Add(1)
		go s.handle(conn)
	}

	s.wg.Wait()

	return ErrShutdown
}

// Stop shuts the listener and ALL the connections down.
func (s *Server) Stop() error {
	s.stop.Store(true)
	err := s.l.Close()

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return err
}

// GracefulShutdown stops accepting new connections, leaving the present ones free to end
// their lives peacefully. The accept loop notices it in at most
// config.NET.AcceptLoopInterruptPeriod.
func (s *Server) GracefulShutdown() {
	s.stop.Store(true)
}

// track registers the connection, so Stop can close it. A connection accepted after the
// server was stopped is closed immediately and false is returned.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop.Load() {
		_ = conn.Close()
		return false
	}

	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()

	observer := s.newObserver(uniuri.New(), conn.RemoteAddr())
	var consumer decoder.Consumer = observer
	if s.metrics != nil {
		consumer = s.metrics.Wrap(s.kind, observer)
	}

	dec, err := decoder.New(s.kind, consumer, s.cfg)
	if err == nil {
		err = s.decode(conn, dec)
	}

	_ = conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	observer.OnClose(err)
}

func (s *Server) decode(conn net.Conn, dec *decoder.Decoder) error {
	buff := make([]byte, s.cfg.NET.ReadBufferSize)

	for {
		if err := conn.SetReadDeadline(timer.Deadline(s.cfg.NET.ReadTimeout)); err != nil {
			return err
		}

		n, err := conn.Read(buff)
		if n > 0 {
			if _, perr := dec.Execute(buff[:n]); perr != nil {
				s.observe(perr)
				return perr
			}

			if dec.Upgraded() {
				return nil
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			err = dec.Finish()
			s.observe(err)
			return err
		default:
			s.observe(err)
			return err
		}
	}
}

func (s *Server) observe(err error) {
	if s.metrics != nil {
		s.metrics.ObserveError(err)
	}
}
