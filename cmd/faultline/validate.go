package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seantiz/faultline/internal/chaosfile"
)

func (c *cli) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE|DIR...",
		Short: "Check that scenario files parse and resolve without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.validate(args)
		},
	}
}

func (c *cli) validate(args []string) error {
	files, err := expandPaths(args)
	if err != nil {
		return err
	}
	reg := c.registry(c.logger())

	var results []fileResult
	for _, path := range files {
		r := fileResult{File: path}
		doc, err := chaosfile.Load(path)
		if err == nil {
			_, err = doc.Build(reg)
		}
		if err != nil {
			r = r.fail(err)
			fmt.Fprintf(c.stdout, "ERROR %s: %s\n", path, r.Error)
		} else {
			fmt.Fprintf(c.stdout, "OK    %s (%d acts)\n", path, len(doc.Acts))
		}
		results = append(results, r)
	}
	return worst(results)
}
