package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Dynpro/NextBI/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the NextBI backend",
	Long: `Sign in to the NextBI backend.

On local development hosts this uses the developer bypass; otherwise it runs
the identity provider's browser sign-in and exchanges the result for a
backend session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		displayAppname(config.New().GetAppName())

		controller, _, err := newController()
		if err != nil {
			return err
		}
		defer controller.Close()

		controller.Resolve(cmd.Context())
		if snap := controller.Snapshot(); snap.IsAuthenticated {
			fmt.Printf("Already signed in as %s\n", snap.User.Email)
			return nil
		}

		if err := controller.Login(cmd.Context()); err != nil {
			if snap := controller.Snapshot(); snap.Err != "" {
				return errors.New(snap.Err)
			}
			return err
		}

		snap := controller.Snapshot()
		fmt.Printf("Signed in as %s\n", snap.User.Email)
		return nil
	},
}
