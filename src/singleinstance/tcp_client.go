package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) Activate(ctx context.Context) error {
	if !residentAlive(ctx) {
		return ErrNoResident
	}
	deadline := timeoutFrom(ctx, 2*time.Second)
	addr := residentAddr()
	conn, err := net.DialTimeout("tcp", addr, deadline)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoResident, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(deadline))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(string(CommandShow) + "\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	switch status {
	case successResponse:
		return nil
	case errorResponse:
		msg, _ := io.ReadAll(br)
		return errors.New(strings.TrimSpace(string(msg)))
	default:
		return fmt.Errorf("unexpected response %q", strings.TrimSpace(status))
	}
}
