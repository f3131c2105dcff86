package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seantiz/faultline/internal/faults"
)

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entry points, their call sites and the built-in fault types",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, info := range c.registry(c.logger()).List() {
				fmt.Fprintln(c.stdout, info.Name)
				if info.Description != "" {
					fmt.Fprintf(c.stdout, "  %s\n", info.Description)
				}
				for _, site := range info.CallSites {
					fmt.Fprintf(c.stdout, "  - %s\n", site)
				}
			}
			fmt.Fprintf(c.stdout, "fault types: %s\n", strings.Join(faults.Default.Names(), ", "))
			return nil
		},
	}
}
