package session

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"cad-lingo/src/clipboard"
	"cad-lingo/src/render"
	"cad-lingo/src/singleinstance"
)

// ResultTarget receives the outcome of a session.
type ResultTarget interface {
	OnSuccess(out Outcome) error
	OnFailure(err error) error
}

// ClipboardTarget writes the translations to the clipboard as plain text.
type ClipboardTarget struct {
	// Write defaults to clipboard.Write.
	Write func(string) error
}

func (t ClipboardTarget) OnSuccess(out Outcome) error {
	if len(out.Results) == 0 {
		zap.S().Infof("session: no text found, clipboard left untouched")
		return nil
	}
	write := t.Write
	if write == nil {
		write = clipboard.Write
	}
	return write(render.Text(out.Results))
}

func (t ClipboardTarget) OnFailure(err error) error {
	return nil
}

// WriterTarget prints results, as text, styled text or a JSON envelope.
type WriterTarget struct {
	Writer io.Writer
	JSON   bool
	Styled bool
	// Errors receives a styled error card on failure when Styled is set.
	Errors io.Writer
}

func (t WriterTarget) writer() io.Writer {
	if t.Writer == nil {
		return os.Stdout
	}
	return t.Writer
}

func (t WriterTarget) OnSuccess(out Outcome) error {
	w := t.writer()
	switch {
	case t.JSON:
		return render.JSON(w, out.Results, render.Meta{Source: out.Source, Engine: out.Engine, Duration: out.Duration})
	case t.Styled:
		_, err := fmt.Fprint(w, render.Styled(out.Results))
		return err
	default:
		text := render.Text(out.Results)
		if text == "" {
			return nil
		}
		_, err := fmt.Fprintln(w, text)
		return err
	}
}

func (t WriterTarget) OnFailure(err error) error {
	if !t.Styled || t.Errors == nil {
		return nil
	}
	_, werr := fmt.Fprintln(t.Errors, render.Error(err))
	return werr
}

// DelegatedTarget answers a run-once client over its single-instance connection.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
	// Write defaults to clipboard.Write.
	Write func(string) error
}

func (t DelegatedTarget) OnSuccess(out Outcome) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	text := render.Text(out.Results)
	if t.OutputToStdout {
		return t.Conn.RespondSuccess(text)
	}
	if err := (ClipboardTarget{Write: t.Write}).OnSuccess(out); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return t.Conn.RespondSuccess("")
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}
