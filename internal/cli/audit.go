package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	auditrepo "github.com/mrlokans/locallibrary/internal/database/audit"
	"github.com/mrlokans/locallibrary/internal/entities"
	"github.com/mrlokans/locallibrary/internal/entrypoint"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and prune the audit trail",
	}
	cmd.AddCommand(newAuditListCommand(), newAuditPruneCommand())
	return cmd
}

func newAuditListCommand() *cobra.Command {
	var (
		filter    auditrepo.Filter
		eventType string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit events, most recent first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			filter.EventType = entities.AuditEventType(eventType)
			events, total, err := app.Audit.List(cmd.Context(), filter, limit, offset)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tUSER\tACTION\tSTATUS\tDESCRIPTION")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.UserID, e.Action, e.Status, e.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d events\n", len(events), total)
			return nil
		}),
	}
	cmd.Flags().UintVar(&filter.UserID, "user", 0, "only events by this user id")
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type: create, update, delete, loan or auth")
	cmd.Flags().StringVar(&filter.EntityType, "entity", "", "only events about this entity type, e.g. book")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	cmd.Flags().IntVar(&offset, "offset", 0, "events to skip")
	return cmd
}

func newAuditPruneCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit events older than the retention period",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *entrypoint.App, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = app.Config.Audit.RetentionDays
			}
			deleted, err := app.Audit.Prune(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d events older than %d days\n", deleted, days)
			return nil
		}),
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention in days (default AUDIT_RETENTION_DAYS)")
	return cmd
}
