package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mrlokans/locallibrary/internal/access"
	"github.com/mrlokans/locallibrary/internal/catalog"
	"github.com/mrlokans/locallibrary/internal/entities"
	"github.com/mrlokans/locallibrary/internal/entrypoint"
)

// operator is the identity every management command acts as.
var operator = access.System()

type namedItem struct {
	ID   uint
	Name string
}

// namedCommandKind describes a name-only catalog table managed from the shell.
type namedCommandKind struct {
	name   string
	create func(ctx context.Context, svc *catalog.Service, name string) (uint, error)
	rename func(ctx context.Context, svc *catalog.Service, id uint, name string) error
	list   func(ctx context.Context, svc *catalog.Service) ([]namedItem, error)
}

var genreKind = namedCommandKind{
	name: "genre",
	create: func(ctx context.Context, svc *catalog.Service, name string) (uint, error) {
		g, err := svc.CreateGenre(ctx, operator, name)
		if err != nil {
			return 0, err
		}
		return g.ID, nil
	},
	rename: func(ctx context.Context, svc *catalog.Service, id uint, name string) error {
		return svc.RenameGenre(ctx, operator, id, name)
	},
	list: func(ctx context.Context, svc *catalog.Service) ([]namedItem, error) {
		genres, err := svc.ListGenres(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]namedItem, 0, len(genres))
		for _, g := range genres {
			items = append(items, namedItem{ID: g.ID, Name: g.Name})
		}
		return items, nil
	},
}

var languageKind = namedCommandKind{
	name: "language",
	create: func(ctx context.Context, svc *catalog.Service, name string) (uint, error) {
		l, err := svc.CreateLanguage(ctx, operator, name)
		if err != nil {
			return 0, err
		}
		return l.ID, nil
	},
	rename: func(ctx context.Context, svc *catalog.Service, id uint, name string) error {
		return svc.RenameLanguage(ctx, operator, id, name)
	},
	list: func(ctx context.Context, svc *catalog.Service) ([]namedItem, error) {
		languages, err := svc.ListLanguages(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]namedItem, 0, len(languages))
		for _, l := range languages {
			items = append(items, namedItem{ID: l.ID, Name: l.Name})
		}
		return items, nil
	},
}

func newNamedCommand(kind namedCommandKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind.name,
		Short: "Manage " + kind.name + "s",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a " + kind.name,
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
				id, err := kind.create(cmd.Context(), app.Catalog, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %d\n", kind.name, id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Rename a " + kind.name,
			Args:  cobra.ExactArgs(2),
			RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := kind.rename(cmd.Context(), app.Catalog, id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s %d\n", kind.name, id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List " + kind.name + "s",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
				items, err := kind.list(cmd.Context(), app.Catalog)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, item := range items {
					fmt.Fprintf(w, "%d\t%s\n", item.ID, item.Name)
				}
				return w.Flush()
			}),
		},
	)
	return cmd
}

func newCopyCommand() *cobra.Command {
	var (
		bookID  uint
		imprint string
		status  string
		due     string
	)

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a copy of a book",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			dueBack, err := parseDue(due)
			if err != nil {
				return err
			}
			instance, err := app.Catalog.CreateInstance(cmd.Context(), operator, catalog.InstanceInput{
				BookID:  bookID,
				Imprint: imprint,
				Status:  entities.LoanStatus(status),
				DueBack: dueBack,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created copy %s (%s)\n", instance.ID, instance.Status.Label())
			return nil
		}),
	}
	add.Flags().UintVar(&bookID, "book", 0, "book id (required)")
	add.Flags().StringVar(&imprint, "imprint", "", "imprint (required)")
	add.Flags().StringVar(&status, "status", string(entities.LoanStatusMaintenance), "status code: m, o, a or r")
	add.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	_ = add.MarkFlagRequired("book")
	_ = add.MarkFlagRequired("imprint")

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Manage book copies",
	}
	cmd.AddCommand(add)
	return cmd
}

func newLendCommand() *cobra.Command {
	var due string

	cmd := &cobra.Command{
		Use:   "lend <copy-id> <username>",
		Short: "Put a copy on loan",
		Long:  "Put a copy on loan. Without --due the copy is due back in three weeks.",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			ctx := cmd.Context()
			instanceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid copy id %q: %w", args[0], err)
			}
			borrower, err := app.Users.GetByUsername(ctx, args[1])
			if err != nil {
				return err
			}
			dueBack, err := parseDue(due)
			if err != nil {
				return err
			}

			instance, err := app.Catalog.LendInstance(ctx, operator, instanceID, borrower.ID, dueBack)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lent %s to %s until %s\n",
				instance.ID, borrower.Username, instance.DueBack.Format(catalog.RenewalDateLayout))
			return nil
		}),
	}
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	return cmd
}

func newReturnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "return <copy-id>",
		Short: "Mark a copy as returned",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			instanceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid copy id %q: %w", args[0], err)
			}
			instance, err := app.Catalog.ReturnInstance(cmd.Context(), operator, instanceID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Returned %s\n", instance.ID)
			return nil
		}),
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

func parseDue(raw string) (*time.Time, error) {
	due, err := catalog.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return due, nil
}
