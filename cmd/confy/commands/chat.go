package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"confy/internal/domain"
	"confy/internal/relay"
	"confy/internal/session"
)

// chatCmd connects to a peer and runs a line-oriented chat loop: stdin lines
// go out encrypted, decrypted peer messages print to stdout.
func chatCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "chat <peer>",
		Short: "Start an encrypted conversation with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.PeerID(args[0])
			if !peer.Valid() {
				return fmt.Errorf("invalid peer name %q", peer)
			}
			if err := connectApp(); err != nil {
				return err
			}
			defer appCtx.Close()

			// If the peer dials us first, answer with a responder session,
			// but only for the peer we were asked to chat with.
			managerCh := make(chan *session.Manager, 1)
			appCtx.Relay.OnIncoming(func(from domain.PeerID) relay.Session {
				if from != peer {
					return nil
				}
				m := appCtx.Answer(from)
				if m == nil {
					return nil
				}
				select {
				case managerCh <- m:
				default:
				}
				return m
			})

			var m *session.Manager
			if wait {
				fmt.Printf("waiting for %s...\n", peer)
				m = <-managerCh
			} else {
				var err error
				if m, err = appCtx.Open(peer); err != nil {
					return err
				}
			}
			defer m.Halt()

			return runChat(m, peer)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the peer to dial instead of dialing")
	return cmd
}

// runChat pumps stdin lines into the session and session events onto
// stdout until the session ends or stdin closes.
func runChat(m *session.Manager, peer domain.PeerID) error {
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if text := strings.TrimSpace(sc.Text()); text != "" {
				lines <- text
			}
		}
		close(lines)
	}()

	for {
		select {
		case ev := <-m.Events():
			switch e := ev.(type) {
			case domain.StateEvent:
				switch e.State {
				case domain.StateReady:
					fmt.Printf("* secure session with %s established\n", peer)
				case domain.StateFailed:
					return fmt.Errorf("session failed: %w", e.Err)
				case domain.StateClosed:
					if e.Err != nil {
						return fmt.Errorf("session closed: %w", e.Err)
					}
					fmt.Println("* session closed")
					return nil
				}
			case domain.MessageEvent:
				fmt.Printf("%s: %s\n", e.Peer, e.Plaintext)
			case domain.NoticeEvent:
				fmt.Printf("* %s\n", e.Text)
			}
		case line, ok := <-lines:
			if !ok {
				m.Close()
				fmt.Println("* session closed")
				return nil
			}
			if err := m.Send([]byte(line)); err != nil {
				fmt.Printf("* send failed: %v\n", err)
			}
		}
	}
}
