package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/loykin/apiverify/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded call runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		runID, _ := cmd.Flags().GetString("run")
		outcome, _ := cmd.Flags().GetString("outcome")
		limit, _ := cmd.Flags().GetInt("limit")
		return showHistory(cmd, store.Filter{RunID: runID, Outcome: outcome, Limit: limit})
	},
}

func showHistory(cmd *cobra.Command, f store.Filter) error {
	doc, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := doc.OpenStore()
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("history store is disabled in config")
	}
	defer func() { _ = st.Close() }()

	runs, err := st.ListRuns(f)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tRUN\tOUTCOME\tSTATUS\tDURATION\tCALL\tRAN AT")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%dms\t%s\t%s\n",
			r.ID, shortID(r.RunID), outcomeText(r.Outcome), r.StatusCode, r.DurationMS, r.Description, r.RanAt)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func outcomeText(o string) string {
	if viper.GetBool("no_color") {
		return o
	}
	switch o {
	case "passed":
		return color.GreenString(o)
	case "failed":
		return color.RedString(o)
	default:
		return color.MagentaString(o)
	}
}
