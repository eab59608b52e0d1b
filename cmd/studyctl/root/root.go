package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studyquest/backend/internal/client"
	"github.com/studyquest/backend/internal/ui"
)

const Version = "0.1.0"

var (
	serverURL string
	token     string
	userID    string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "studyctl",
		Short:         "studyquest progress CLI",
		Long:          "studyctl drives a studyquest progress server: log study, score quizzes, buy power-ups and sync.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", envOr("STUDYQUEST_SERVER_URL", "http://127.0.0.1:8080"), "progress server base URL")
	flags.StringVar(&token, "token", os.Getenv("STUDYQUEST_TOKEN"), "bearer token")
	flags.StringVar(&userID, "user", os.Getenv("STUDYQUEST_USER"), "user id")

	cmd.AddCommand(
		newStatusCmd(),
		newPointsCmd(),
		newStudyCmd(),
		newQuizCmd(),
		newBuyCmd(),
		newSyncCmd(),
		newPullCmd(),
		newWatchCmd(),
	)
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}

// connect opens (or reuses) the session for --token and --user.
func connect() (*client.HTTPClient, error) {
	if token == "" {
		return nil, fmt.Errorf("no token: pass --token or set STUDYQUEST_TOKEN")
	}
	if userID == "" {
		return nil, fmt.Errorf("no user: pass --user or set STUDYQUEST_USER")
	}
	c := client.NewHTTPClient(serverURL, token)
	if _, err := c.OpenSession(userID); err != nil {
		return nil, err
	}
	return c, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
