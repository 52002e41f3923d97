package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/text"
)

var errQuit = errors.New("quit")

const usage = `commands:
  play | pause | toggle | stop
  next | prev            move by word
  down | up              move by paragraph
  seek N                 move the caret to rune offset N
  type TEXT              insert TEXT at the caret
  say TEXT               replace the document with TEXT and speak it
  open FILE              load a .txt, .md, .pdf or .docx file
  export FILE            render the document to a WAV file
  paste | capture        speak the clipboard or the capture region
  copy                   copy the highlight, or the document, to the clipboard
  voice NAME | voices    choose or list voices
  rate N                 speech rate from -10 to 10
  where                  show the reading position
  token                  issue an API token
  quit`

// console reads commands line by line and runs them against the app.
type console struct {
	app *app
	out io.Writer
}

func (c *console) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		err := c.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (c *console) exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	rd := c.app.reader

	switch strings.ToLower(cmd) {
	case "play":
		return c.call(ctx, cmd, rd.StartSpeaking)
	case "pause":
		return c.do(ctx, cmd, rd.PauseReading)
	case "toggle":
		return c.call(ctx, cmd, rd.TogglePlayPause)
	case "stop":
		return c.do(ctx, cmd, rd.Stop)
	case "next":
		return c.do(ctx, cmd, rd.MoveNextWord)
	case "prev":
		return c.do(ctx, cmd, rd.MovePreviousWord)
	case "down":
		return c.do(ctx, cmd, rd.MoveNextParagraph)
	case "up":
		return c.do(ctx, cmd, rd.MovePreviousParagraph)
	case "seek":
		pos, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("seek: invalid offset %q", arg)
		}
		return c.do(ctx, cmd, func() { rd.Select(text.Selection{Start: pos}) })
	case "type":
		if arg == "" {
			return errors.New("type: text is required")
		}
		return c.do(ctx, cmd, func() { rd.Insert(arg) })
	case "say":
		return c.app.paste.HandleText(ctx, "console", arg)
	case "open", "load":
		if arg == "" {
			return errors.New("open: file is required")
		}
		return c.app.open(ctx, arg)
	case "export":
		if arg == "" {
			return errors.New("export: file is required")
		}
		if err := c.app.export(ctx, arg); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "exported %s\n", arg)
		return nil
	case "paste":
		return c.app.pasteClipboard(ctx)
	case "capture":
		return c.app.capture(ctx)
	case "copy":
		n, err := c.app.copy(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "copied %d characters\n", n)
		return nil
	case "voice":
		return c.call(ctx, cmd, func() error { return rd.SetVoice(arg) })
	case "voices":
		var voices []string
		if err := c.do(ctx, cmd, func() { voices = rd.Voices() }); err != nil {
			return err
		}
		for _, v := range voices {
			fmt.Fprintln(c.out, v)
		}
		return nil
	case "rate":
		rate, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("rate: invalid value %q", arg)
		}
		return c.call(ctx, cmd, func() error { return rd.SetRate(rate) })
	case "where":
		var snap reader.Snapshot
		if err := c.do(ctx, cmd, func() { snap = rd.Snapshot() }); err != nil {
			return err
		}
		fmt.Fprintln(c.out, describe(snap))
		return nil
	case "token":
		token, expires, err := c.app.token()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\nexpires %s\n", token, expires.Format("2006-01-02 15:04"))
		return nil
	case "help", "?":
		fmt.Fprintln(c.out, usage)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
}

// call runs fn on the loop and returns its error.
func (c *console) call(ctx context.Context, name string, fn func() error) error {
	var opErr error
	if err := c.app.loop.Call(ctx, "console:"+name, func() { opErr = fn() }); err != nil {
		return err
	}
	return opErr
}

func (c *console) do(ctx context.Context, name string, fn func()) error {
	return c.app.loop.Call(ctx, "console:"+name, fn)
}

// describe formats the reading position as "state start/len voice rate word".
func describe(snap reader.Snapshot) string {
	runes := []rune(snap.Text)
	sel := snap.Selection
	word := ""
	if sel.Start+sel.Length <= len(runes) {
		word = string(runes[sel.Start : sel.Start+sel.Length])
	}

	voice := snap.Voice
	if voice == "" {
		voice = "default"
	}
	return fmt.Sprintf("%s %d/%d voice=%s rate=%d %q", snap.State, sel.Start, len(runes), voice, snap.Rate, word)
}
