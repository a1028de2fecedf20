package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/vendedor360/backend/config"
	"github.com/vendedor360/backend/internal/bootstrap"
	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
)

// Exit codes
const (
	exitOK          = 0
	exitAborted     = 1
	exitLogFailures = 2
)

func main() {
	flags := pflag.NewFlagSet("bidder", pflag.ExitOnError)
	config.RegisterFlags(flags)
	portals := flags.StringSlice("portal", nil, "portals to run, in order (default: every enabled portal)")
	report := flags.Bool("report", false, "print the run reports as JSON to stdout")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(exitAborted)
	}

	log := logger.New(cfg.Server.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, *portals, *report, log, os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, portals []string, printReport bool, log *logger.Logger, out io.Writer) int {
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", "error", err.Error())
		return exitAborted
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("failed to release resources", "error", err.Error())
		}
	}()

	if len(app.Dispatcher.Portals()) == 0 {
		log.Error("no portal enabled; set credentials for at least one portal")
		return exitAborted
	}

	reports, err := runPortals(ctx, app, portals, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bidding run failed", "error", err.Error())
	}

	for _, r := range reports {
		log.Info("run_report",
			"run_id", r.RunID,
			"portal", r.Portal,
			"state", string(r.State),
			"scanned", r.Scanned,
			"matched", r.Matched,
			"submitted", r.Submitted,
			"duplicates", r.Duplicates,
			"failures", len(r.Failures),
			"log_failures", len(r.LogFailures),
		)
	}

	if printReport {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			log.Error("failed to print report", "error", err.Error())
		}
	}

	if err != nil && len(reports) == 0 {
		return exitAborted
	}
	return exitCode(reports)
}

// runPortals runs the requested portals, or every enabled one when none is named
func runPortals(ctx context.Context, app *bootstrap.App, portals []string, log *logger.Logger) ([]*domain.RunReport, error) {
	if len(portals) == 0 {
		return app.Dispatcher.RunAll(ctx)
	}

	var reports []*domain.RunReport
	for _, name := range portals {
		report, err := app.Dispatcher.RunPortal(ctx, name)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			if report == nil || ctx.Err() != nil {
				return reports, err
			}
			log.Error("portal_aborted", "portal", name, "error", err.Error())
		}
	}
	return reports, nil
}

// exitCode is 1 when any portal aborted, otherwise 2 when any record failed to persist
func exitCode(reports []*domain.RunReport) int {
	code := exitOK
	for _, r := range reports {
		if r.Aborted() {
			return exitAborted
		}
		if len(r.LogFailures) > 0 {
			code = exitLogFailures
		}
	}
	return code
}
