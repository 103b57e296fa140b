package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/locallibrary/internal/auth"
	"github.com/mrlokans/locallibrary/internal/entrypoint"
)

// readPassword reads a password from the terminal without echoing it.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func newCreateUserCommand() *cobra.Command {
	var (
		username  string
		email     string
		password  string
		superuser bool
	)

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a library account",
		Long: "Create a library account. The password is prompted for unless --password is given.\n" +
			"Superusers pass every permission check.",
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			if password == "" {
				var err error
				if password, err = readPassword(cmd, "Password: "); err != nil {
					return err
				}
				confirmation, err := readPassword(cmd, "Password (again): ")
				if err != nil {
					return err
				}
				if err := auth.ConfirmPassword(password, confirmation); err != nil {
					return err
				}
			}

			user, err := app.Auth.CreateUser(cmd.Context(), username, email, password, superuser)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password; prompted for when empty")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant every permission")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// newPermissionCommand builds grant or revoke; both take a user and codenames.
func newPermissionCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <username> <codename>...",
		Short: short,
		Long: short + ".\n\nCodenames: can_mark_returned, add_author, change_author, delete_author,\n" +
			"add_book, change_book, delete_book.",
		Args: cobra.MinimumNArgs(2),
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			ctx := cmd.Context()
			user, err := app.Users.GetByUsername(ctx, args[0])
			if err != nil {
				return err
			}

			codenames := args[1:]
			if name == "grant" {
				err = app.Users.GrantPermissions(ctx, user.ID, codenames...)
			} else {
				err = app.Users.RevokePermissions(ctx, user.ID, codenames...)
			}
			if err != nil {
				return err
			}

			user, err = app.Users.GetByID(ctx, user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", user.Username, strings.Join(user.PermissionCodenames(), " "))
			return nil
		}),
	}
}

func newDeleteUserCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deleteuser <username>",
		Short: "Delete a library account",
		Long:  "Delete a library account. Copies the user borrowed keep their status but lose the borrower.",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			ctx := cmd.Context()
			user, err := app.Users.GetByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			if err := app.Users.Delete(ctx, user.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", user.Username)
			return nil
		}),
	}
}
