package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/drwebengine/drwe/internal/config"
	"github.com/drwebengine/drwe/internal/eval"
	"github.com/drwebengine/drwe/internal/logging"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/queryfmt"
)

// GlobalFlags carries every flag the run/validate/install verbs accept.
type GlobalFlags struct {
	Browser         string
	Channel         string
	Headed          bool
	StorageState    string
	WallClockBudget string
	NavTimeout      string
	Strict          bool
	Quiet           bool
	Verbose         bool
	Yaml            bool
}

type App struct {
	Out io.Writer
	Err io.Writer
}

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func (a App) prepare(flags GlobalFlags) (config.Config, error) {
	overrides := config.Overrides{
		Browser:          flags.Browser,
		Channel:          flags.Channel,
		StorageStatePath: flags.StorageState,
		WallClockBudget:  flags.WallClockBudget,
		NavTimeout:       flags.NavTimeout,
	}
	if flags.Strict {
		t := true
		overrides.Strict = &t
	}
	return config.Load(overrides)
}

func (a App) dialect(flags GlobalFlags, path string) queryfmt.Dialect {
	if flags.Yaml || strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return queryfmt.DialectYAML
	}
	return queryfmt.DialectJSON
}

func (a App) runValidate(flags GlobalFlags, path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	if _, err := queryfmt.Parse(raw, a.dialect(flags, path)); err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	if !flags.Quiet {
		fmt.Fprintln(a.Out, "ok")
	}
	return exitSuccess
}

func (a App) runRun(flags GlobalFlags, path string) int {
	cfg, err := a.prepare(flags)
	if err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	q, err := queryfmt.Parse(raw, a.dialect(flags, path))
	if err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Verbose: flags.Verbose})
	if err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	defer logger.Sync()

	// HEADLESS=0/false runs a visible browser; --headed always does.
	headless := !flags.Headed
	if v := strings.TrimSpace(os.Getenv("HEADLESS")); v != "" && !flags.Headed {
		headless = v == "1" || strings.EqualFold(v, "true")
	}

	controller, err := page.StartPlaywright(page.StartOptions{
		Browser:          cfg.Browser,
		Channel:          cfg.Channel,
		Headless:         headless,
		StorageStatePath: cfg.StorageStatePath,
	})
	if err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	defer controller.Close()

	evaluator := eval.New(eval.Options{
		Strict:          cfg.Strict,
		WallClockBudget: cfg.WallClockBudget,
		NavTimeoutMs:    int(cfg.NavTimeout / time.Millisecond),
		Logger:          logger,
	})

	result, err := evaluator.Evaluate(context.Background(), controller, q)
	if err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}

	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Data); err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	if len(result.Diagnostics) > 0 && !flags.Quiet {
		for _, d := range result.Diagnostics {
			fmt.Fprintf(a.Err, "diagnostic: %s %v: %s\n", d.Kind, d.Path, d.Message)
		}
	}
	if result.Cancelled {
		return exitFailure
	}
	return exitSuccess
}

func (a App) runInstall(flags GlobalFlags) int {
	opts := &playwright.RunOptions{}
	if flags.Browser != "" {
		opts.Browsers = []string{flags.Browser}
	}
	if err := playwright.Install(opts); err != nil {
		fmt.Fprintln(a.Err, err)
		return exitFailure
	}
	if !flags.Quiet {
		fmt.Fprintln(a.Out, "Playwright installed")
	}
	return exitSuccess
}
