package cmd

import (
	"errors"
	"os"

	"claudebridge/internal/oauth"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates no usable credential is available.
	ExitCodeAuthRequired = 2
)

// rootCmd represents the base command for the claudebridge application.
var rootCmd = &cobra.Command{
	Use:   "claudebridge",
	Short: "Chat with Claude through your local Claude Code credential",
	Long: `claudebridge reuses the OAuth credential stored by the Claude Code CLI
(macOS keychain or ~/.claude/.credentials.json) to talk to the Anthropic
Messages API, refreshing the token transparently when it is about to
expire.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// handled by the application.
	SilenceUsage: true,
}

var (
	configPathFlag string
	logLevelFlag   string
)

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "claudebridge version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types onto semantic exit codes for scripting.
func getExitCode(err error) int {
	if errors.Is(err, oauth.ErrUnavailable) {
		return ExitCodeAuthRequired
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config-path", "",
		"Configuration directory (default is $HOME/.config/claudebridge)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error (overrides config file)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newServeCmd())
}
