package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, rdb := a.newClient()
			defer client.Close()
			if rdb != nil {
				defer rdb.Close()
			}

			if err := client.CancelBooking(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
			return nil
		},
	}
}
