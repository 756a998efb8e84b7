package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, _, err := newController()
		if err != nil {
			return err
		}
		defer controller.Close()

		controller.Resolve(cmd.Context())
		snap := controller.Snapshot()

		fmt.Printf("State:         %s\n", snap.State)
		fmt.Printf("Authenticated: %t\n", snap.IsAuthenticated)
		if snap.User != nil {
			fmt.Printf("User:          %s <%s>\n", snap.User.DisplayName, snap.User.Email)
		}
		if snap.Err != "" {
			fmt.Printf("Error:         %s\n", snap.Err)
		}
		return nil
	},
}
