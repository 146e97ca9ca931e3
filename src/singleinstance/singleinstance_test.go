package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

// usePort points the port range at a single free loopback port.
func usePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	_ = lis.Close()
	t.Setenv("SINGLEINSTANCE_PORT_START", strconv.Itoa(port))
	t.Setenv("SINGLEINSTANCE_PORT_END", strconv.Itoa(port))
	return port
}

func startServer(t *testing.T, ctx context.Context) Server {
	t.Helper()
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("tcp listener unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		line    string
		want    Request
		wantErr bool
	}{
		{"RUN paste clipboard\n", Request{Source: SourcePaste}, false},
		{"RUN region stdout\n", Request{Source: SourceRegion, OutputToStdout: true}, false},
		{"RUN  paste   stdout", Request{Source: SourcePaste, OutputToStdout: true}, false},
		{"STDOUT\n", Request{}, true},
		{"RUN upload stdout\n", Request{}, true},
		{"RUN paste printer\n", Request{}, true},
		{"", Request{}, true},
	}
	for _, tt := range tests {
		got, err := ParseRequest(tt.line)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedRequest) {
				t.Errorf("ParseRequest(%q): expected ErrMalformedRequest, got %v", tt.line, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRequest(%q): unexpected error %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRequest(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestRequestLineRoundTrip(t *testing.T) {
	for _, req := range []Request{
		{Source: SourcePaste},
		{Source: SourceRegion, OutputToStdout: true},
	} {
		got, err := ParseRequest(req.Line())
		if err != nil || got != req {
			t.Errorf("round trip of %+v gave %+v, %v", req, got, err)
		}
	}
	if line := (Request{}).Line(); line != "RUN paste clipboard\n" {
		t.Errorf("default line = %q", line)
	}
}

func TestServerClientRoundTrip(t *testing.T) {
	usePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	type reply struct {
		delegated bool
		text      string
		err       error
	}
	replies := make(chan reply, 1)
	go func() {
		delegated, text, err := NewClient().TryRun(ctx, Request{Source: SourceRegion, OutputToStdout: true})
		replies <- reply{delegated, text, err}
	}()

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := conn.Request(); got.Source != SourceRegion || !got.OutputToStdout {
		t.Errorf("unexpected request %+v", got)
	}
	if err := conn.RespondSuccess("EN: Pier\nVI: Trụ cầu"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	_ = conn.Close()

	r := <-replies
	if r.err != nil || !r.delegated {
		t.Fatalf("expected delegation, got delegated=%t err=%v", r.delegated, r.err)
	}
	if r.text != "EN: Pier\nVI: Trụ cầu" {
		t.Errorf("unexpected payload %q", r.text)
	}
}

func TestClientReceivesError(t *testing.T) {
	usePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := NewClient().TryRun(ctx, Request{Source: SourcePaste})
		errCh <- err
	}()

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	_ = conn.RespondError("Busy, please retry")
	_ = conn.Close()

	if err := <-errCh; err == nil || err.Error() != "Busy, please retry" {
		t.Errorf("expected busy error, got %v", err)
	}
}

func TestServerRejectsMalformedRequest(t *testing.T) {
	port := usePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startServer(t, ctx)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(residentHost, strconv.Itoa(port)), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("STDOUT\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil || status != "ERROR\n" {
		t.Fatalf("expected ERROR status, got %q (%v)", status, err)
	}
	body, _ := io.ReadAll(br)
	if len(body) == 0 {
		t.Error("expected an error message body")
	}
}

func TestNoResidentIsNotDelegated(t *testing.T) {
	usePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	delegated, _, err := NewClient().TryRun(ctx, Request{})
	if err != nil || delegated {
		t.Errorf("expected delegated=false err=nil, got %t %v", delegated, err)
	}
	if _, ok := DetectResidentPort(ctx); ok {
		t.Error("expected no resident to be detected")
	}
}

func TestPreflight(t *testing.T) {
	port := usePort(t)
	if got, err := Preflight(); err != nil || got != port {
		t.Fatalf("expected free port %d, got %d %v", port, got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startServer(t, ctx)

	if _, err := Preflight(); err == nil {
		t.Error("expected preflight to fail while a resident holds the port")
	}
	if got, ok := DetectResidentPort(ctx); !ok || got != port {
		t.Errorf("expected resident on %d, got %d %t", port, got, ok)
	}
}

func TestPortRangeFromEnv(t *testing.T) {
	t.Setenv("SINGLEINSTANCE_PORT_START", "50010")
	t.Setenv("SINGLEINSTANCE_PORT_END", "50000")
	start, end := GetPortRangeForDebug()
	if start != 50000 || end != 50010 {
		t.Errorf("expected swapped range 50000-50010, got %d-%d", start, end)
	}
}
