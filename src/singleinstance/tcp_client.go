package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) TryRun(ctx context.Context, req Request) (bool, string, error) {
	timeout := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	// scan configured range for resident using PING then request
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, timeout) {
			continue
		}
		return roundTrip(ctx, addr, timeout, req)
	}
	return false, "", nil
}

// roundTrip sends req to a resident that already answered PING. The reply is
// awaited until ctx ends, since the resident runs a full analysis first.
func roundTrip(ctx context.Context, addr string, dialTimeout time.Duration, req Request) (bool, string, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, "", nil
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(req.Line()); err != nil {
		return true, "", err
	}
	if err := w.Flush(); err != nil {
		return true, "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return true, "", fmt.Errorf("reading resident reply: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case "SUCCESS\n":
		return true, string(body), nil
	case "ERROR\n":
		return true, "", errors.New(string(body))
	default:
		return true, "", fmt.Errorf("unexpected resident reply %q", status)
	}
}
