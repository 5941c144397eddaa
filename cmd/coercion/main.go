package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/bluesky-social/coercion-labeler/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

// Command output (labels, reports, converted rows) goes to stdout; logs go to stderr.
func run(args []string, stdout io.Writer) error {

	app := cli.App{
		Name:    "coercion",
		Usage:   "coercion policy labeler and gold-set grader",
		Version: versioninfo.Short(),
		Writer:  stdout,
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "rules",
			Usage:   "path to JSON rules manifest",
			Value:   "labeler-inputs/rules.json",
			EnvVars: []string{"COERCION_RULES"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"COERCION_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (text or json)",
			EnvVars: []string{"COERCION_LOG_FMT"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to serve prometheus metrics on while running (eg, :3998)",
			EnvVars: []string{"COERCION_METRICS_LISTEN"},
		},
	}

	app.Before = func(cctx *cli.Context) error {
		if _, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel:  cctx.String("log-level"),
			LogFormat: cctx.String("log-format"),
		}); err != nil {
			return err
		}
		if listen := cctx.String("metrics-listen"); listen != "" {
			go func() {
				if err := runMetrics(listen); err != nil {
					slog.Error("failed to start metrics endpoint", "err", err)
				}
			}()
		}
		return nil
	}

	app.Commands = []*cli.Command{
		labelCmd,
		gradeCmd,
		checkRulesCmd,
		uri2urlCmd,
	}

	return app.Run(args)
}

func runMetrics(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("serving metrics", "listen", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}
