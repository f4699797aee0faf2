package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/loykin/apiverify/pkg/suite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:   "validate <suite.yaml>...",
	Short: "Check suites without sending any request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateSuites(cmd, args)
	},
}

func validateSuites(cmd *cobra.Command, paths []string) error {
	okMark, badMark := color.New(color.FgGreen).Sprint("✓"), color.New(color.FgRed).Sprint("✗")
	if viper.GetBool("no_color") {
		okMark, badMark = "✓", "✗"
	}
	out := cmd.OutOrStdout()
	invalid := 0
	for _, p := range paths {
		s, err := suite.Load(p)
		if err != nil {
			invalid++
			_, _ = fmt.Fprintf(out, "%s %s\n    %v\n", badMark, p, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s %s (%d calls)\n", okMark, p, len(s.Calls))
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d suites invalid", invalid, len(paths))
	}
	return nil
}
