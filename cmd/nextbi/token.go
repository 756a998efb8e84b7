package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an access token for authenticated backend calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, _, err := newController()
		if err != nil {
			return err
		}
		defer controller.Close()

		controller.Resolve(cmd.Context())

		token := controller.GetAccessToken(cmd.Context())
		if token == "" {
			return errors.New("no valid session; run 'nextbi login' first")
		}
		fmt.Println(token)
		return nil
	},
}
