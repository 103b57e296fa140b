// Package cli is the locallibrary command line: the web server plus the
// management commands librarians use from a shell.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/locallibrary/internal/config"
	"github.com/mrlokans/locallibrary/internal/entrypoint"
)

// NewRootCommand builds the command tree. Without a subcommand the server starts.
func NewRootCommand(version, commit string) *cobra.Command {
	root := &cobra.Command{
		Use:           "locallibrary",
		Short:         "Local Library catalog server and management tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(config.NewConfig(), version)
		},
	}

	root.AddCommand(
		newServeCommand(version),
		newVersionCommand(version, commit),
		newCreateUserCommand(),
		newPermissionCommand("grant", "Grant permissions to a user"),
		newPermissionCommand("revoke", "Revoke permissions from a user"),
		newDeleteUserCommand(),
		newSeedCommand(),
		newNamedCommand(genreKind),
		newNamedCommand(languageKind),
		newCopyCommand(),
		newLendCommand(),
		newReturnCommand(),
		newAuditCommand(),
	)
	return root
}

func newServeCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(config.NewConfig(), version)
		},
	}
}

func newVersionCommand(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "locallibrary %s (%s)\n", version, commit)
		},
	}
}

// withApp opens the configured database for the duration of one command.
func withApp(run func(cmd *cobra.Command, app *entrypoint.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := entrypoint.Build(config.NewConfig())
		if err != nil {
			return err
		}
		defer app.Close()
		return run(cmd, app, args)
	}
}
