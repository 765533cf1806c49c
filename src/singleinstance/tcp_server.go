package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	residentHost    = "127.0.0.1"
	pingRequest     = "PING\n"
	pongResponse    = "PONG\n"
	successResponse = "SUCCESS\n"
	errorResponse   = "ERROR\n"
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	mu       sync.Mutex
	lis      net.Listener
	incoming chan *tcpConn
	port     int
	closed   bool
	done     chan struct{}
}

func newTcpServer() Server {
	return &tcpServer{incoming: make(chan *tcpConn, 8), done: make(chan struct{})}
}

// Start binds the configured port. If occupied, fail.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	port := getPort()
	addr := fmt.Sprintf("%s:%d", residentHost, port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = port
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx, lis)
	return nil
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)
		if line == pingRequest {
			log.Printf("singleinstance: PING from %s -> PONG", remote)
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		}
		cmd := Command(strings.TrimSpace(line))
		log.Printf("singleinstance: request from %s command=%s", remote, cmd)
		tc := &tcpConn{c: c, r: Request{Command: cmd}, w: bw}
		select {
		case s.incoming <- tc:
		case <-s.done:
			_ = c.Close()
			return
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

// Next returns net.ErrClosed once the server is closed.
func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	if s.lis != nil {
		_ = s.lis.Close()
		s.lis = nil
	}
	s.port = 0
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess() error {
	if _, err := tc.w.WriteString(successResponse); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorResponse + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
