package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "apiverify",
	Short:         "Run and verify HTTP API calls described in YAML suites",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	v := viper.GetViper()
	v.SetDefault("config", "")
	v.SetDefault("no_color", false)
	v.SetDefault("fail_fast", false)

	// APIVERIFY_CONFIG, APIVERIFY_NO_COLOR, ...
	v.SetEnvPrefix("APIVERIFY")
	v.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to a config yaml")
	rootCmd.PersistentFlags().Bool("no-color", v.GetBool("no_color"), "disable colored output")
	runCmd.Flags().Bool("fail-fast", v.GetBool("fail_fast"), "stop a suite at the first call that does not pass")
	historyCmd.Flags().String("run", "", "only show calls of this run id")
	historyCmd.Flags().String("outcome", "", "only show calls with this outcome (passed, failed, errored)")
	historyCmd.Flags().Int("limit", 50, "maximum number of rows")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))
	_ = v.BindPFlag("fail_fast", runCmd.Flags().Lookup("fail-fast"))

	rootCmd.AddCommand(runCmd, validateCmd, historyCmd)
}

func main() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
