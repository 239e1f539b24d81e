package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swell/internal/diag"
)

var explainCmd = &cobra.Command{
	Use:   "explain CODE",
	Short: "Explain a diagnostic code",
	Long:  `Explain prints the catalogue entry for a diagnostic code such as SW1001.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := strings.ToUpper(strings.TrimSpace(args[0]))
		raw = strings.TrimPrefix(raw, "SW")
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid diagnostic code %q", args[0])
		}
		code := diag.Code(n)
		text, ok := diag.Explain(code)
		if !ok {
			return fmt.Errorf("unknown diagnostic code %s", code)
		}
		header := color.New(color.Bold).Sprint(code.String())
		fmt.Printf("%s\n  %s\n", header, text)
		return nil
	},
}
