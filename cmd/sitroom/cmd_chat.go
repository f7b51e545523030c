package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aiwargamer/sitroom/internal/cache"
	"github.com/aiwargamer/sitroom/internal/chat"
	"github.com/aiwargamer/sitroom/internal/execution"
	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/orchestration"
	"github.com/aiwargamer/sitroom/internal/render"
	"github.com/aiwargamer/sitroom/internal/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const chatHelp = `Commands:
  /history  show the conversation so far
  /reset    start a new conversation (the transcript context is sent again)
  /quit     leave the chat`

func newChatCommand(root *rootOptions) *cobra.Command {
	var (
		messages []string
		timeout  time.Duration
		raw      bool
	)

	cmd := &cobra.Command{
		Use:   "chat <advisor>",
		Short: "Chat with an advisor grounded in the transcripts",
		Long: `Open an interactive conversation with one advisor persona.

The first message carries the full transcript context; later messages are sent
as typed and the provider keeps the conversation. With --message the given
messages are sent in order and the command exits.

` + chatHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			env, err := loadProject(root)
			if err != nil {
				return err
			}
			advisor, err := env.catalog.Advisor(args[0])
			if err != nil {
				return fmt.Errorf("%w: %s", chat.ErrUnknownAdvisor, args[0])
			}

			corpus, err := env.loadTranscripts(ctx)
			if err != nil {
				return err
			}
			if corpus.Empty() {
				slog.Warn("No transcript data found; chatting without context")
			}

			gen, err := execution.New(env.cfg.Provider)
			if err != nil {
				return err
			}
			defer gen.Shutdown(context.Background()) //nolint:errcheck

			if timeout == 0 {
				timeout = env.cfg.Batch.TaskTimeout
			}
			ctrl := chat.NewController(env.catalog, gen, chat.WithTimeout(timeout))
			r := &chatREPL{
				ctrl:    ctrl,
				advisor: advisor.Name,
				blob:    corpus.Blob,
				out:     cmd.OutOrStdout(),
				raw:     raw || !isTerminal(cmd.OutOrStdout()),
			}

			fmt.Fprintf(r.out, "%s %s\n", advisor.Icon, advisor.Name)
			if entries, err := env.reports(); err == nil {
				key := models.TaskID{Kind: models.TaskKindBriefing, Name: advisor.Name}.CacheKey()
				if briefing, ok := cache.Lookup(entries, key); ok && !orchestration.IsFailurePlaceholder(briefing) {
					r.print(briefing)
				}
			}

			if len(messages) > 0 {
				for _, m := range messages {
					if err := r.send(ctx, m); err != nil {
						return err
					}
				}
				return nil
			}
			return r.loop(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "Send this message and exit (can be repeated)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-message timeout (default: batch.task_timeout)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print replies as markdown without rendering")

	return cmd
}

type chatREPL struct {
	ctrl    *chat.Controller
	advisor string
	blob    string
	out     io.Writer
	raw     bool
}

func (r *chatREPL) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, chatHelp)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(r.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			r.ctrl.Reset(r.advisor)
			fmt.Fprintln(r.out, "Conversation reset.")
			continue
		case "/history":
			r.history()
			continue
		}
		if err := r.send(ctx, line); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *chatREPL) send(ctx context.Context, text string) error {
	s, err := r.ctrl.GetOrCreate(r.advisor)
	if err != nil {
		return err
	}

	var sp *spinner.Spinner
	if !r.raw {
		sp = spinner.Start(r.out, r.advisor+" is thinking...")
	}
	turn, err := r.ctrl.Send(ctx, s, text, r.blob)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return err
	}
	r.print(turn.Content)
	return nil
}

func (r *chatREPL) history() {
	s, ok := r.ctrl.Lookup(r.advisor)
	if !ok || len(s.History()) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, turn := range s.History() {
		who := "You"
		if turn.Role == models.RoleAssistant {
			who = r.advisor
		}
		fmt.Fprintf(r.out, "[%s] %s: %s\n", turn.Timestamp.Format("15:04:05"), who, turn.Content)
	}
}

func (r *chatREPL) print(markdown string) {
	if r.raw {
		fmt.Fprintln(r.out, markdown)
		return
	}
	fmt.Fprint(r.out, render.Terminal(markdown, render.TerminalWidth()))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
