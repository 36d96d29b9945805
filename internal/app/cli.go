package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

var Version = "dev"

func Execute(args []string, out io.Writer, errOut io.Writer) int {
	app := App{Out: out, Err: errOut}
	flags := GlobalFlags{}
	var showVersion bool

	root := &cobra.Command{
		Use:           "drwe",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().BoolVarP(&showVersion, "version", "V", false, "version")
	root.PersistentFlags().StringVarP(&flags.Browser, "browser", "b", "", "browser type (chromium, firefox, webkit)")
	root.PersistentFlags().StringVarP(&flags.Channel, "channel", "c", "", "browser channel")
	root.PersistentFlags().BoolVarP(&flags.Headed, "headed", "H", false, "run with a visible browser window")
	root.PersistentFlags().StringVarP(&flags.StorageState, "storage-state", "s", "", "path to a reused storage-state file")
	root.PersistentFlags().StringVar(&flags.WallClockBudget, "wall-clock-budget", "", "overall evaluation time budget (e.g. 90s)")
	root.PersistentFlags().StringVar(&flags.NavTimeout, "nav-timeout", "", "per-navigation timeout (e.g. 30s)")
	root.PersistentFlags().BoolVar(&flags.Strict, "strict", false, "abort on the first step error instead of recording a diagnostic")
	root.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVarP(&flags.Yaml, "yaml", "y", false, "parse the query document as YAML instead of JSON")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if showVersion {
			fmt.Fprintln(out, Version)
			return exitError{code: exitSuccess}
		}
		return nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "run QUERY_FILE",
		Short: "Evaluate a query document against a live browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := app.runRun(flags, args[0])
			return exitOrNil(code)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate QUERY_FILE",
		Short: "Parse and schema-check a query document without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := app.runValidate(flags, args[0])
			return exitOrNil(code)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the Playwright driver and browser binaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			code := app.runInstall(flags)
			return exitOrNil(code)
		},
	})

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintln(errOut, err)
		return exitUsage
	}
	return exitSuccess
}

func exitOrNil(code int) error {
	if code == exitSuccess {
		return nil
	}
	return exitError{code: code}
}
