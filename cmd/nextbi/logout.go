package main

import (
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, _, err := newController()
		if err != nil {
			return err
		}
		defer controller.Close()

		// Local teardown always succeeds; provider sign-out is best effort.
		controller.Logout(cmd.Context())
		return nil
	},
}
