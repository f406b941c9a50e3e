package cmd

import (
	"context"
	"fmt"

	"claudebridge/internal/credstore"
	"claudebridge/internal/provider"
	"claudebridge/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// newServeCmd creates the serve command, which exposes the bridge as an MCP
// server over stdio so MCP-capable hosts can chat through the stored
// credential.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge as an MCP server over stdio",
		Long: `serve runs an MCP server on stdin/stdout exposing a chat tool backed by
the Anthropic Messages API and the stored Claude Code credential. Point an
MCP host at 'claudebridge serve' to use it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp()
			if err != nil {
				return err
			}

			// The Claude Code CLI may refresh the credential file on its own
			// while we are serving. The next resolution re-reads the store
			// anyway; the watch just makes the handover visible in the logs.
			if fs, ok := a.store.(*credstore.FileStore); ok {
				changes, err := fs.Watch(cmd.Context())
				if err != nil {
					logging.Warn("Serve", "cannot watch credentials file: %v", err)
				} else {
					go func() {
						for range changes {
							logging.Info("Serve", "credentials file changed externally")
						}
					}()
				}
			}

			s := server.NewMCPServer(
				"claudebridge",
				GetVersion(),
				server.WithToolCapabilities(false),
			)

			chatTool := mcp.NewTool("chat",
				mcp.WithDescription("Send a prompt to Claude and return the reply"),
				mcp.WithString("prompt",
					mcp.Required(),
					mcp.Description("The user prompt to send"),
				),
				mcp.WithString("system",
					mcp.Description("Optional additional system prompt"),
				),
				mcp.WithString("model",
					mcp.Description("Optional model override"),
				),
			)
			s.AddTool(chatTool, a.handleChatTool)

			statusTool := mcp.NewTool("credential_status",
				mcp.WithDescription("Report the state of the stored Claude Code credential"),
			)
			s.AddTool(statusTool, a.handleStatusTool)

			return server.ServeStdio(s)
		},
	}
}

// handleChatTool performs one chat exchange on behalf of an MCP host.
func (a *app) handleChatTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var messages []provider.Message
	if system := request.GetString("system", ""); system != "" {
		messages = append(messages, provider.Message{
			Role:    provider.RoleSystem,
			Content: system,
		})
	}
	messages = append(messages, provider.Message{
		Role:    provider.RoleUser,
		Content: prompt,
	})

	resp := a.provider.Chat(ctx, messages, nil, a.chatOptions(request.GetString("model", "")))
	if resp.FinishReason == provider.FinishError {
		return mcp.NewToolResultError(resp.Content), nil
	}
	return mcp.NewToolResultText(resp.Content), nil
}

// handleStatusTool reports the credential state without refreshing it.
func (a *app) handleStatusTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, state, err := a.manager.Peek(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading credential from %s: %v", a.store.Source(), err)), nil
	}

	text := fmt.Sprintf("source: %s\nstate: %s\nexpires: %s\nrefresh token: %s",
		a.store.Source(), state, formatExpiry(doc.Credentials.ExpiresAt),
		presence(doc.Credentials.RefreshToken))
	return mcp.NewToolResultText(text), nil
}
