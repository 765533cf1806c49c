package singleinstance

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"
)

// residentAlive reports whether a resident responds to PING on the
// configured port.
func residentAlive(ctx context.Context) bool {
	return ping(residentAddr(), timeoutFrom(ctx, 300*time.Millisecond))
}

func residentAddr() string {
	return net.JoinHostPort(residentHost, strconv.Itoa(getPort()))
}

func timeoutFrom(ctx context.Context, def time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return def
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(pingRequest); err != nil {
		return false
	}
	if err := w.Flush(); err != nil {
		return false
	}
	br := bufio.NewReader(conn)
	resp, err := br.ReadString('\n')
	return err == nil && resp == pongResponse
}
