package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/loykin/apiverify/cmd/apiverify/config"
	"github.com/loykin/apiverify/pkg/call"
	"github.com/loykin/apiverify/pkg/listener"
	"github.com/loykin/apiverify/pkg/script"
	"github.com/loykin/apiverify/pkg/suite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run <suite.yaml>...",
	Short: "Execute suites and report every call",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runSuites(ctx, cmd, args)
	},
}

func loadConfig(cmd *cobra.Command) (*config.ConfigDoc, error) {
	doc, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if err := doc.SetupLogging(cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	return doc, nil
}

func runSuites(ctx context.Context, cmd *cobra.Command, paths []string) error {
	doc, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	suites := make([]*suite.Suite, 0, len(paths))
	for _, p := range paths {
		s, err := suite.Load(p)
		if err != nil {
			return err
		}
		suites = append(suites, s)
	}

	base, err := doc.GetEnv(ctx)
	if err != nil {
		return err
	}
	tr, err := doc.Transport()
	if err != nil {
		return err
	}
	st, err := doc.OpenStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer func() { _ = st.Close() }()
	}
	tp, shutdown, err := doc.SetupTracing(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	console := listener.NewConsole(cmd.OutOrStdout(), viper.GetBool("no_color"))
	failFast := doc.FailFast || viper.GetBool("fail_fast")
	ok := true
	for _, s := range suites {
		runID := suite.NewRunID()
		e := base.Clone()
		ls := []call.Listener{console, listener.NewLog(nil)}
		if st != nil {
			h := listener.NewHistory(st, runID)
			h.SaveBody = doc.Store.SaveResponseBody
			h.Env = e.LocalValues
			ls = append(ls, h)
		}
		if tp != nil {
			ls = append(ls, listener.NewTrace(ctx, tp))
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "suite %s (run %s)\n", suiteLabel(s), runID)
		r := &suite.Runner{
			Transport: tr,
			Env:       e,
			Listeners: ls,
			Evaluator: script.New(),
			FailFast:  failFast,
		}
		sum, err := r.Run(ctx, s, runID)
		if err != nil {
			return err
		}
		ok = ok && sum.OK()
	}
	console.PrintSummary()
	if !ok {
		return errCallsFailed
	}
	return nil
}

func suiteLabel(s *suite.Suite) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}
