package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"cipherlink/internal/domain"
)

const chatHelp = `Commands:
  /peers            list online peers and unread counts
  /focus <peer>     open the conversation with peer
  /history          show the focused conversation again
  /logout           end the session and erase local keys
  /quit             leave, keeping the session for next time
Any other line is sent to the focused peer.`

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive session with the stored login",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := &syncWriter{w: cmd.OutOrStdout()}
			ctrl := wire.Controller
			ctrl.OnIncoming(func(from domain.PeerID, e domain.Entry, d domain.Delivery) {
				if d == domain.Delivered {
					printEntry(out, e)
					return
				}
				out.printf("* new message from %s (%d unread)\n", e.Sender, ctrl.Unread()[from])
			})

			if err := resume(ctx); err != nil {
				return err
			}
			out.printf("Logged in as %s\n%s\n", ctrl.Self(), chatHelp)

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					select {
					case lines <- sc.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			done := ctrl.Done()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-done:
					if err := ctrl.Err(); err != nil {
						return fmt.Errorf("session ended: %w", err)
					}
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					quit, err := handleLine(out, line)
					if err != nil {
						out.printf("! %v\n", err)
					}
					if quit {
						return nil
					}
				}
			}
		},
	}
}

// handleLine runs one input line. quit is true when the loop should end.
func handleLine(out *syncWriter, line string) (quit bool, err error) {
	ctrl := wire.Controller
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, ctrl.Send(line)
	}

	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch verb {
	case "/peers":
		peers := ctrl.Peers()
		if len(peers) == 0 {
			out.printf("No other users online\n")
		}
		unread := ctrl.Unread()
		for _, p := range peers {
			if n := unread[p.ID]; n > 0 {
				out.printf("  %s (%d unread)\n", p.Name, n)
			} else {
				out.printf("  %s\n", p.Name)
			}
		}
	case "/focus":
		if arg == "" {
			return false, errors.New("usage: /focus <peer>")
		}
		p, history, err := ctrl.SelectPeer(arg)
		if err != nil {
			return false, err
		}
		out.printf("-- %s --\n", p.Name)
		for _, e := range history {
			printEntry(out, e)
		}
	case "/history":
		p, ok := ctrl.Focused()
		if !ok {
			return false, domain.ErrNoFocus
		}
		out.printf("-- %s --\n", p.Name)
		for _, e := range ctrl.History(p.ID) {
			printEntry(out, e)
		}
	case "/logout":
		if err := ctrl.Logout(); err != nil {
			return true, err
		}
		out.printf("Logged out\n")
		return true, nil
	case "/quit":
		return true, nil
	case "/help":
		out.printf("%s\n", chatHelp)
	default:
		return false, fmt.Errorf("unknown command %s; try /help", verb)
	}
	return false, nil
}

func printEntry(out *syncWriter, e domain.Entry) {
	switch {
	case e.Error:
		out.printf("! %s\n", e.Plaintext)
	case e.Self:
		out.printf("> %s\n", e.Plaintext)
	default:
		out.printf("%s: %s\n", e.Sender, e.Plaintext)
	}
}

// syncWriter serialises output from the input loop and the session reader.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}
