package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"mask-relay/internal/client"
	"mask-relay/internal/env"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var url, name, room, passphrase string

	flagSet := pflag.NewFlagSet("chat-client", pflag.ContinueOnError)
	flagSet.StringVar(&url, "url", "ws://localhost:8080/ws", "relay websocket URL")
	flagSet.StringVar(&name, "name", "", "display name shown to the room")
	flagSet.StringVar(&room, "room", "", "room to join")
	flagSet.StringVar(&passphrase, "passphrase", "", "shared room passphrase (default $"+env.Passphrase+")")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if passphrase == "" {
		passphrase = env.Get(env.Passphrase)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	presenter := newLinePresenter(os.Stdout)
	session := client.New(presenter, client.WithURL(url))
	defer session.Close()

	if err := session.Join(ctx, name, room, passphrase); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "joined %s as %s. Type a message and press enter; /join <room> <passphrase> switches rooms.\n", room, name)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return fmt.Errorf("connection to %s lost", url)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleLine(ctx, session, name, line); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
	}
}

func handleLine(ctx context.Context, session *client.Session, name, line string) error {
	if rest, ok := strings.CutPrefix(line, "/join "); ok {
		fields := strings.Fields(rest)
		if len(fields) != 2 {
			return fmt.Errorf("usage: /join <room> <passphrase>")
		}
		return session.Join(ctx, name, fields[0], fields[1])
	}

	if strings.TrimSpace(line) == "" {
		return nil
	}
	if err := session.NotifyLocalTyping(); err != nil {
		return err
	}
	return session.SendPlaintext(line)
}

// linePresenter prints session events one per line.
type linePresenter struct {
	out io.Writer
}

func newLinePresenter(out io.Writer) *linePresenter {
	return &linePresenter{out: out}
}

func (p *linePresenter) OnMessage(m client.MessageView) {
	fmt.Fprintf(p.out, "[%s] %s: %s\n", m.Timestamp.Format(time.Kitchen), m.Sender, m.Text)
}

func (p *linePresenter) OnPresence(kind client.PresenceKind, name string) {
	fmt.Fprintf(p.out, "* %s %s the room\n", name, kind)
}

func (p *linePresenter) OnOnline() {
	fmt.Fprintln(p.out, "* someone else is here")
}

func (p *linePresenter) OnTyping(name string) {
	fmt.Fprintf(p.out, "* %s is typing...\n", name)
}

func (p *linePresenter) OnTypingCleared() {}

func (p *linePresenter) OnStatus(s client.Status) {
	fmt.Fprintf(p.out, "* status: %s\n", s)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `chat-client joins an end-to-end encrypted room on a relay.

Messages are encrypted locally with the room passphrase; the relay only
ever sees ciphertext. Peers holding a different passphrase see a
placeholder instead of your text.

Usage:
  chat-client --name <name> --room <room> [--passphrase <secret>] [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
