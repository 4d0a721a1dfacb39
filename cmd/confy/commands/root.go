package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"confy/internal/app"
)

const version = "0.1.0"

var (
	relayURL string
	username string
	logLevel string
	logFile  string

	appCtx *app.App
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:           "confy",
		Short:         "End-to-end encrypted chat over a blind relay",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVarP(&username, "username", "u", "", "your name on the relay")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "NOTICE", "log level (ERROR, WARNING, NOTICE, INFO, DEBUG)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "log destination (default stderr)")

	root.AddCommand(chatCmd(), checkCmd())
	return root.Execute()
}

// connectApp builds the app context from the persistent flags.
func connectApp() error {
	if relayURL == "" {
		return fmt.Errorf("no relay configured. use --relay")
	}
	if username == "" {
		return fmt.Errorf("username required (-u)")
	}
	a, err := app.New(app.Config{
		RelayURL: relayURL,
		Username: username,
		LogLevel: logLevel,
		LogFile:  logFile,
	})
	if err != nil {
		return err
	}
	appCtx = a
	return nil
}
