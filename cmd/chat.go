package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"claudebridge/internal/provider"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

// newChatCmd creates the chat command. With a prompt argument it runs a
// single exchange; without one it opens an interactive session that keeps
// the conversation history between turns.
func newChatCmd() *cobra.Command {
	var (
		modelFlag  string
		systemFlag string
		quietFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Chat with Claude using the stored Claude Code credential",
		Long: `chat sends prompts to the Anthropic Messages API using the OAuth
credential stored by the Claude Code CLI. With a prompt argument a single
exchange is performed and the reply printed to stdout; without arguments an
interactive session starts.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp()
			if err != nil {
				return err
			}

			session := &chatSession{
				app:    a,
				out:    cmd.OutOrStdout(),
				model:  modelFlag,
				system: systemFlag,
				quiet:  quietFlag,
			}
			if systemFlag != "" {
				session.history = append(session.history, provider.Message{
					Role:    provider.RoleSystem,
					Content: systemFlag,
				})
			}

			if len(args) > 0 {
				return session.oneShot(cmd.Context(), strings.Join(args, " "))
			}
			return session.interactive(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&modelFlag, "model", "", "Model to use (overrides config)")
	cmd.Flags().StringVar(&systemFlag, "system", "", "Additional system prompt")
	cmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress the progress spinner")

	return cmd
}

// chatSession carries the conversation state of one chat invocation.
type chatSession struct {
	app     *app
	out     io.Writer
	model   string
	system  string
	quiet   bool
	history []provider.Message
}

// oneShot performs a single exchange and prints the reply.
func (s *chatSession) oneShot(ctx context.Context, prompt string) error {
	resp := s.exchange(ctx, prompt)
	if resp.FinishReason == provider.FinishError {
		return fmt.Errorf("%s", resp.Content)
	}

	fmt.Fprintln(s.out, resp.Content)
	return nil
}

// interactive runs the conversation loop until Ctrl+D or an exit command.
func (s *chatSession) interactive(ctx context.Context) error {
	historyFile := filepath.Join(os.TempDir(), ".claudebridge_chat_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(s.out, "claudebridge %s (model %s). Type 'exit' or Ctrl+D to quit.\n\n",
		GetVersion(), s.app.provider.DefaultModel())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		resp := s.exchange(ctx, input)
		fmt.Fprintln(s.out, resp.Content)
		if len(resp.ToolCalls) > 0 {
			s.printToolCalls(resp.ToolCalls)
		}
		fmt.Fprintln(s.out)
	}
}

// exchange appends the prompt to the history, performs the request and
// records the assistant turn. Failed turns are not added to the history so
// a transient error does not poison the conversation.
func (s *chatSession) exchange(ctx context.Context, prompt string) *provider.Response {
	messages := append(s.history, provider.Message{
		Role:    provider.RoleUser,
		Content: prompt,
	})

	var sp *spinner.Spinner
	if !s.quiet {
		sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		sp.Suffix = " Thinking..."
		sp.Start()
	}

	resp := s.app.provider.Chat(ctx, messages, nil, s.app.chatOptions(s.model))

	if sp != nil {
		sp.Stop()
	}

	if resp.FinishReason != provider.FinishError {
		s.history = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
	}

	return resp
}

func (s *chatSession) printToolCalls(calls []provider.ToolCall) {
	for _, call := range calls {
		args, _ := json.Marshal(call.Arguments)
		fmt.Fprintf(s.out, "[tool call] %s(%s)\n", call.Name, string(args))
	}
}
