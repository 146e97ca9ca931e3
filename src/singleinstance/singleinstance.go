package singleinstance

// This file defines the API for single-instance ownership and run-once delegation.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	SourcePaste  = "paste"
	SourceRegion = "region"

	OutputStdout    = "stdout"
	OutputClipboard = "clipboard"
)

var ErrMalformedRequest = errors.New("malformed request")

// Server owns the TCP endpoint and answers run-once requests.
type Server interface {
	// Start begins listening on the first port of the configured range and accepting client requests.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	Request() Request
	// RespondSuccess sends success. For stdout mode, send text; for clipboard mode, send empty text.
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request is a single delegated run: where the image comes from and where the
// translations go.
type Request struct {
	Source         string
	OutputToStdout bool
}

// Line encodes the request as "RUN <source> <output>\n".
func (r Request) Line() string {
	source := r.Source
	if source == "" {
		source = SourcePaste
	}
	output := OutputClipboard
	if r.OutputToStdout {
		output = OutputStdout
	}
	return fmt.Sprintf("RUN %s %s\n", source, output)
}

// ParseRequest decodes a request line produced by Request.Line.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "RUN" {
		return Request{}, fmt.Errorf("%w: %q", ErrMalformedRequest, strings.TrimSpace(line))
	}
	var req Request
	switch fields[1] {
	case SourcePaste, SourceRegion:
		req.Source = fields[1]
	default:
		return Request{}, fmt.Errorf("%w: unknown source %q", ErrMalformedRequest, fields[1])
	}
	switch fields[2] {
	case OutputStdout:
		req.OutputToStdout = true
	case OutputClipboard:
	default:
		return Request{}, fmt.Errorf("%w: unknown output %q", ErrMalformedRequest, fields[2])
	}
	return req, nil
}

// Client attempts to delegate run-once invocation to a resident server.
type Client interface {
	// TryRun scans the port range, performs the handshake and delegates to the resident.
	// If no resident is found, returns delegated=false, err=nil.
	TryRun(ctx context.Context, req Request) (delegated bool, text string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
