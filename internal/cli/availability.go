package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAvailabilityCmd(a *app) *cobra.Command {
	var (
		venueID string
		date    string
		covers  int
	)

	c := &cobra.Command{
		Use:   "availability",
		Short: "List bookable slots for a venue, date and party size",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}
			if covers <= 0 {
				return fmt.Errorf("--covers must be positive")
			}

			client, rdb := a.newClient()
			defer client.Close()
			if rdb != nil {
				defer rdb.Close()
			}

			slots, err := client.GetAvailability(cmd.Context(), venueID, day, covers)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), slots)
		},
	}

	c.Flags().StringVar(&venueID, "venue", "", "DesignMyNight venue id")
	c.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD")
	c.Flags().IntVar(&covers, "covers", 2, "party size")
	_ = c.MarkFlagRequired("venue")
	_ = c.MarkFlagRequired("date")

	return c
}
