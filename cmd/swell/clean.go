package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"swell/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop the build cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := driver.OpenCache("swell")
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return err
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			fmt.Println("build cache dropped")
		}
		return nil
	},
}
