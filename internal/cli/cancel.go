package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelInProgressCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-in-progress",
		Short: "Cancel every ticket that is in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), opts, func(a *application) error {
				count, err := a.tickets.CancelAllInProgressTickets(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d in-progress tickets\n", count)
				return err
			})
		},
	}
}
