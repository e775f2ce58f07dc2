// Command lessonctl drives the lesson API from a terminal: sign in once, then
// generate, list, rate and revise plans. The session is kept in a file so
// later invocations reuse it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/config"
	"lessonlab-backend/internal/session"
)

type app struct {
	apiURL      string
	sessionFile string
	jsonOutput  bool

	out  io.Writer
	api  *client.Client
	auth *session.Provider
}

// connect builds the client and restores the saved session.
func (a *app) connect() error {
	base := client.New(a.apiURL, nil)
	a.auth = session.NewProvider(base, session.FileStore{Path: a.sessionFile})
	if err := a.auth.Restore(); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	a.api = base.WithTokens(a.auth)
	return nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	cfg := config.LoadClient()
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "lessonctl",
		Short:         "Generate and manage lesson plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.apiURL, "api", cfg.LessonAPIURL, "lesson API base URL")
	root.PersistentFlags().StringVar(&a.sessionFile, "session", cfg.SessionFile, "where the signed-in session is stored")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print raw JSON")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.generateCmd(),
		a.listCmd(),
		a.showCmd(),
		a.rateCmd(),
		a.reviseCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
