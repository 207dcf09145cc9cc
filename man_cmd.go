package main

import (
	"fmt"

	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/Jai1122/ConvoCast/internal/voice"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:    "man",
	Short:  "Generate man pages",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE: func(*cobra.Command, []string) error {
		manPage, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err
		}

		manPage = manPage.WithSection("Copyright", "Released under MIT license.")

		fmt.Println(manPage.Build(roff.NewDocument()))
		return nil
	},
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List voice profiles and engine availability",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()

		voices, err := voice.NewRegistry(nil, log.Default())
		if err != nil {
			return err
		}
		engCfg, err := env.ParseAs[engine.Config]()
		if err != nil {
			return err
		}
		registry := engine.Default(engCfg, log.Default())

		fmt.Fprintln(out, "Engines:")
		for _, kind := range registry.Kinds() {
			status := "unavailable"
			if registry.Available(kind) {
				status = "available"
			}
			fmt.Fprintf(out, "  %-8s %s\n", kind, status)
		}

		fmt.Fprintln(out, "Profiles:")
		for _, id := range voices.ProfileIDs() {
			profile, _ := voices.Resolve(id)
			fmt.Fprintf(out, "  %-16s engine=%s\n", id, profile.Engine)
		}
		return nil
	},
}
