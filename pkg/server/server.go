package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/cuemby/burrow/pkg/command"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/store"
	"github.com/rs/zerolog"
)

// maxLineBytes caps the length of one request line. Lines beyond the cap are
// discarded up to the next delimiter and the connection keeps going.
const maxLineBytes = 64 * 1024

var crlf = []byte("\r\n")

var errLineTooLong = errors.New("request line exceeds buffer")

// Server speaks the memcached text protocol over TCP against a store. One
// goroutine serves each connection; all mutations funnel through
// store.Apply.
type Server struct {
	store    *store.Store
	logger   zerolog.Logger
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a server over the given store.
func NewServer(s *store.Store) *Server {
	return &Server{
		store:  s,
		logger: log.WithComponent("server"),
	}
}

// Listen binds the TCP listener.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("serving")
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	logger := log.WithConn(conn.RemoteAddr().String())
	r := bufio.NewReaderSize(conn, maxLineBytes)
	w := bufio.NewWriter(conn)

	for {
		line, err := readLine(r)
		if errors.Is(err, errLineTooLong) {
			logger.Warn().Msg("line overrun, discarding")
			continue
		}
		if err != nil {
			if err != io.EOF {
				logger.Warn().Err(err).Msg("read failed")
			}
			return
		}
		metrics.BytesIn.Add(float64(len(line) + len(crlf)))
		if len(line) == 0 {
			continue
		}

		resp := s.dispatch(logger, r, line)
		if resp != nil {
			resp = append(resp, crlf...)
			if _, err := w.Write(resp); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			metrics.BytesOut.Add(float64(len(resp)))
		}
	}
}

// readLine reads one \r\n-terminated line, without the terminator. A line
// longer than the reader's buffer is discarded up to and including the next
// delimiter and reported as errLineTooLong.
func readLine(r *bufio.Reader) ([]byte, error) {
	slice, err := r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		for err == bufio.ErrBufferFull {
			_, err = r.ReadSlice('\n')
		}
		if err != nil {
			return nil, err
		}
		return nil, errLineTooLong
	}
	if err != nil {
		if err == io.EOF && len(slice) > 0 {
			// Peer closed mid-line; nothing to dispatch.
			return nil, io.EOF
		}
		return nil, err
	}
	line := bytes.TrimRight(slice, "\r\n")
	// ReadSlice returns a view into the reader's buffer; SET reads the data
	// block next, which would clobber it.
	return bytes.Clone(line), nil
}

// dispatch parses one request line and executes it. A nil response means
// nothing is written back (noreply, debug verbs, or a suppressed reply after
// a parse failure).
func (s *Server) dispatch(logger zerolog.Logger, r *bufio.Reader, line []byte) []byte {
	tokens := bytes.Split(line, []byte(" "))
	verb := strings.ToLower(string(tokens[0]))
	args := tokens[1:]

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RequestDuration, verb)

	switch verb {
	case "set":
		return s.cmdSet(logger, r, args)
	case "get":
		return s.cmdGet(args)
	case "delete":
		return s.cmdDelete(logger, args)
	case "dump":
		s.apply(&command.DumpCommand{})
		return nil
	case "dumplog":
		s.apply(&command.DumpLogCommand{})
		return nil
	case "dumpcommit":
		s.apply(&command.DumpCommitCommand{})
		return nil
	default:
		metrics.RequestErrors.WithLabelValues(verb).Inc()
		return []byte("ERROR")
	}
}

func (s *Server) cmdSet(logger zerolog.Logger, r *bufio.Reader, args [][]byte) []byte {
	if len(args) < 4 || len(args) > 5 {
		metrics.RequestErrors.WithLabelValues("set").Inc()
		return []byte("ERROR")
	}
	noreply := len(args) == 5 && string(args[4]) == "noreply"

	key := args[0]
	flags, err := strconv.ParseUint(string(args[1]), 10, 16)
	if err != nil {
		metrics.RequestErrors.WithLabelValues("set").Inc()
		logger.Warn().Err(err).Msg("bad flags")
		return nil
	}
	exptime, err := strconv.ParseUint(string(args[2]), 10, 32)
	if err != nil {
		metrics.RequestErrors.WithLabelValues("set").Inc()
		logger.Warn().Err(err).Msg("bad exptime")
		return nil
	}
	datalen, err := strconv.ParseUint(string(args[3]), 10, 32)
	if err != nil {
		metrics.RequestErrors.WithLabelValues("set").Inc()
		logger.Warn().Err(err).Msg("bad data length")
		return nil
	}

	// The data block is exactly datalen bytes plus the trailing \r\n.
	block := make([]byte, datalen+2)
	if _, err := io.ReadFull(r, block); err != nil {
		metrics.RequestErrors.WithLabelValues("set").Inc()
		logger.Warn().Err(err).Msg("short data block")
		return nil
	}
	metrics.BytesIn.Add(float64(len(block)))
	if !bytes.HasSuffix(block, crlf) {
		metrics.RequestErrors.WithLabelValues("set").Inc()
		logger.Warn().Msg("data block not terminated")
		return nil
	}
	data := block[:datalen]

	if _, err := s.store.Apply(command.NewSetCommand(key, uint16(flags), uint32(exptime), data)); err != nil {
		metrics.RequestErrors.WithLabelValues("set").Inc()
		logger.Error().Err(err).Msg("set failed")
		return nil
	}
	if noreply {
		return nil
	}
	return []byte("STORED")
}

func (s *Server) cmdGet(args [][]byte) []byte {
	if len(args) < 1 {
		metrics.RequestErrors.WithLabelValues("get").Inc()
		return []byte("ERROR")
	}
	var resp bytes.Buffer
	for _, key := range args {
		item, err := s.store.Apply(command.NewGetCommand(key))
		if err != nil {
			// Missing keys are omitted silently.
			continue
		}
		fmt.Fprintf(&resp, "VALUE %s %d %d\r\n", key, item.Flags, len(item.Data))
		resp.Write(item.Data)
		resp.Write(crlf)
	}
	resp.WriteString("END")
	return resp.Bytes()
}

func (s *Server) cmdDelete(logger zerolog.Logger, args [][]byte) []byte {
	if len(args) < 1 || len(args) > 2 {
		metrics.RequestErrors.WithLabelValues("delete").Inc()
		return []byte("ERROR")
	}
	noreply := len(args) == 2 && string(args[1]) == "noreply"

	var resp []byte
	_, err := s.store.Apply(command.NewDeleteCommand(args[0]))
	switch {
	case errors.Is(err, command.ErrMissingKey):
		resp = []byte("NOT_FOUND")
	case err != nil:
		metrics.RequestErrors.WithLabelValues("delete").Inc()
		logger.Error().Err(err).Msg("delete failed")
		return nil
	default:
		resp = []byte("DELETED")
	}
	if noreply {
		return nil
	}
	return resp
}

func (s *Server) apply(cmd command.Command) {
	if _, err := s.store.Apply(cmd); err != nil {
		s.logger.Error().Err(err).Msg("command failed")
	}
}
