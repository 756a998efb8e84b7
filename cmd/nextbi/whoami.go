package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Fetch the canonical user record from the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, client, err := newController()
		if err != nil {
			return err
		}
		defer controller.Close()

		user, err := client.Me(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s <%s>\n", user.DisplayName, user.Email)
		if user.Role != "" {
			fmt.Printf("Role: %s\n", user.Role)
		}
		return nil
	},
}
