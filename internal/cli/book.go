package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tablebook/internal/models"
)

func newBookCmd(a *app) *cobra.Command {
	var (
		venueID  string
		slotFile string
		covers   int
		user     models.BookingUser
	)

	c := &cobra.Command{
		Use:   "book",
		Short: "Book a slot previously returned by the availability command",
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := readSlot(slotFile)
			if err != nil {
				return err
			}
			if covers <= 0 {
				covers = slot.Covers
			}
			if user.ID == "" {
				user.ID = uuid.New().String()
			}
			user.IsOwner = true

			client, rdb := a.newClient()
			defer client.Close()
			if rdb != nil {
				defer rdb.Close()
			}

			booking, err := client.CreateBooking(cmd.Context(), venueID, user, slot, covers)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), booking)
		},
	}

	c.Flags().StringVar(&venueID, "venue", "", "DesignMyNight venue id")
	c.Flags().StringVar(&slotFile, "slot-file", "", "JSON file holding one availability slot")
	c.Flags().IntVar(&covers, "covers", 0, "party size (default: the slot's covers)")
	c.Flags().StringVar(&user.FirstName, "first-name", "", "guest first name")
	c.Flags().StringVar(&user.LastName, "last-name", "", "guest last name")
	c.Flags().StringVar(&user.Email, "email", "", "guest email")
	c.Flags().StringVar(&user.Phone, "phone", "", "guest phone")
	_ = c.MarkFlagRequired("venue")
	_ = c.MarkFlagRequired("slot-file")

	return c
}

func readSlot(path string) (models.AvailabilitySlot, error) {
	var slot models.AvailabilitySlot
	data, err := os.ReadFile(path)
	if err != nil {
		return slot, fmt.Errorf("read slot file: %w", err)
	}
	if err := json.Unmarshal(data, &slot); err != nil {
		return slot, fmt.Errorf("parse slot file: %w", err)
	}
	return slot, nil
}
