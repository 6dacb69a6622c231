// Package cli wires up the owachecker command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/metoffice/owa-checker/internal/auth"
	"github.com/metoffice/owa-checker/internal/checker"
	"github.com/metoffice/owa-checker/internal/config"
	"github.com/metoffice/owa-checker/internal/logger"
	"github.com/metoffice/owa-checker/internal/msgraph"
	"github.com/metoffice/owa-checker/internal/notify"
	"github.com/metoffice/owa-checker/internal/singleinstance"
)

var (
	// version is set by the build.
	version = "dev"

	// verbose enables debug logging.
	verbose bool

	// authFlow runs the one-time interactive sign-in instead of the checker.
	authFlow bool
)

// rootCmd is the base command. With no flags it runs the poll loop; with
// --auth it runs the interactive authorization flow.
var rootCmd = &cobra.Command{
	Use:   "owachecker",
	Short: "Desktop notifications for new Outlook mail and calendar reminders",
	Long: `owachecker polls Outlook Web Access (Microsoft Graph) on a schedule and
raises desktop notifications for new unread mail and upcoming meetings.

Before first use, register an application in Azure and export
OWA_CHECKER_CLIENT_ID, OWA_CHECKER_CLIENT_SECRET and OWA_CHECKER_DOMAIN,
then run once with --auth to sign in. After that, run without arguments
to start checking.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")
	rootCmd.Flags().BoolVar(&authFlow, "auth", false, "run the interactive sign-in flow")

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return nil
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// Configuration problems are reported before any network activity.
	cred, err := config.CredentialFromEnv()
	if err != nil {
		return err
	}

	dir, err := config.StateDir()
	if err != nil {
		return err
	}
	store := auth.NewStore(dir)

	if authFlow {
		return runAuthFlow(cmd, cred, store)
	}

	if err := singleinstance.Check(); err != nil {
		return err
	}

	logger.SetLogFile(filepath.Join(dir, "owa_checker.log"))
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.NewWatcher(ctx, config.SettingsPath(dir))
	if err != nil {
		return err
	}
	if settings.Settings().DebugLog {
		logger.SetVerbose(true)
	}

	chk := checker.New(
		msgraph.NewClient(),
		auth.NewRefresher(cred, store),
		notify.NewDesktop(),
		settings.Settings,
	)
	return chk.Run(ctx)
}

// runAuthFlow performs the interactive authorization-code grant. This is
// the only path that may overwrite stored credentials, and it only runs
// under the explicit --auth flag.
func runAuthFlow(cmd *cobra.Command, cred config.Credential, store *auth.Store) error {
	lookup := func(ctx context.Context, token string) (string, error) {
		user, err := msgraph.NewClient().Me(ctx, token)
		if err != nil {
			return "", err
		}
		return user.Email(), nil
	}

	flow := auth.NewFlow(cred, store, lookup, cmd.OutOrStdout())
	email, err := flow.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if email != "" {
		fmt.Fprintf(out, "Successfully signed in as %s\n", email)
	} else {
		fmt.Fprintln(out, "Successfully signed in")
	}
	fmt.Fprintln(out, "You can now re-run without --auth to start the checker.")
	fmt.Fprintln(out, "If your password changes or the token is revoked you will")
	fmt.Fprintln(out, "need to run the sign-in again.")
	return nil
}
