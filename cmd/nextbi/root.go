package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dynpro/NextBI/backend"
	"github.com/Dynpro/NextBI/identity"
	"github.com/Dynpro/NextBI/internal/config"
	"github.com/Dynpro/NextBI/notify"
	"github.com/Dynpro/NextBI/session"
	"github.com/Dynpro/NextBI/tokenstore"
)

var rootCmd = &cobra.Command{
	Use:   "nextbi",
	Short: "Session manager for the NextBI dashboard backend",
	Long: `nextbi manages the authenticated session against a NextBI backend.

It signs in either through the configured identity provider or, on local
development hosts, through the developer bypass, and keeps the resulting
backend session on disk so subsequent invocations reuse it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd, tokenCmd, whoamiCmd)
}

// newController wires the full session stack from environment configuration.
func newController() (*session.Controller, *backend.Client, error) {
	cfg := config.New()

	store, err := tokenstore.NewFileRepo(cfg.GetDataFolder())
	if err != nil {
		return nil, nil, err
	}

	bus := notify.NewBus()

	client, err := backend.NewClient(cfg, store, bus)
	if err != nil {
		return nil, nil, err
	}

	provider, err := identity.NewClient(cfg, bus)
	if err != nil {
		return nil, nil, err
	}

	controller, err := session.New(cfg, store, provider, client, bus, consoleNavigator{})
	if err != nil {
		return nil, nil, err
	}

	return controller, client, nil
}

// consoleNavigator stands in for the application shell's navigation.
type consoleNavigator struct{}

func (consoleNavigator) NavigateHome() {
	fmt.Println("You are signed in. Open NextBI to continue.")
}

func (consoleNavigator) NavigateLogin() {
	fmt.Println("You are signed out.")
}
