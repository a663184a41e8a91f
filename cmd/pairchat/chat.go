package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/pairchat-server/internal/client"
	pclog "github.com/vovakirdan/pairchat-server/internal/log"
)

type chatOptions struct {
	server   string
	username string
	password string
	peer     string
	register bool
	logLevel string
}

func newChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with one peer from the terminal",
		Long:  "Reads lines from stdin and sends each as a message. /read marks the peer's messages as read, /quit leaves.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")
	flags.StringVar(&opts.username, "username", "", "your username")
	flags.StringVar(&opts.password, "password", "", "your password")
	flags.StringVar(&opts.peer, "peer", "", "user id to chat with")
	flags.BoolVar(&opts.register, "register", false, "create the account before logging in")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "client log level")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("peer")
	return cmd
}

func runChat(ctx context.Context, opts chatOptions, in io.Reader, out io.Writer) error {
	logger := pclog.NewWithWriter(opts.logLevel, os.Stderr)
	hc := http.DefaultClient

	authenticate := client.Login
	if opts.register {
		authenticate = client.Register
	}
	creds, err := authenticate(ctx, hc, opts.server, opts.username, opts.password)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	var conversationID string
	var c *client.Client
	c, err = client.Dial(ctx, client.Config{ServerURL: opts.server, UserID: creds.UserID, Token: creds.Token}, logger,
		client.WithHTTPClient(hc),
		client.WithUpdateHandler(func(u client.Update) {
			switch u.Kind {
			case client.UpdateMessage:
				fmt.Fprintf(out, "[%s] %s\n", u.Message.SenderID, render(u.Message.Text, u.Message.Image))
				if u.ConversationID == conversationID {
					go func() { _ = c.MarkAsRead(ctx, conversationID, opts.peer) }()
				}
			case client.UpdateRead:
				fmt.Fprintln(out, "-- read")
			case client.UpdateTypingStart:
				fmt.Fprintln(out, "-- typing...")
			case client.UpdatePresence:
				fmt.Fprintf(out, "-- online: %s\n", strings.Join(u.Users, ", "))
			case client.UpdateError:
				fmt.Fprintf(out, "!! %s: %s\n", u.Error.Code, u.Error.Msg)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	conv, err := c.OpenConversation(ctx, opts.peer)
	if err != nil {
		return err
	}
	conversationID = conv.ID
	if err := c.Resync(ctx, conv.ID, 20); err != nil {
		return err
	}
	for _, m := range c.Messages(conv.ID) {
		fmt.Fprintf(out, "[%s] %s (%s)\n", m.SenderID, render(m.Text, m.Image), m.Status)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()
	if err := c.AddUser(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "/quit":
				return nil
			case "/read":
				if err := c.MarkAsRead(ctx, conv.ID, opts.peer); err != nil {
					return err
				}
				continue
			}
			// Stdin arrives a whole line at a time, so this client never sends typing events.
			if _, err := c.Send(ctx, conv.ID, opts.peer, line, ""); err != nil {
				return err
			}
		}
	}
}

func render(text, image string) string {
	if image == "" {
		return text
	}
	if text == "" {
		return "<image " + image + ">"
	}
	return text + " <image " + image + ">"
}
