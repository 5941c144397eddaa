package main

import (
	"fmt"

	"github.com/bluesky-social/coercion-labeler/fetch"
	"github.com/bluesky-social/coercion-labeler/grading"
	"github.com/bluesky-social/coercion-labeler/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	cli "github.com/urfave/cli/v2"
	"gorm.io/plugin/opentelemetry/tracing"
)

var gradeCmd = &cli.Command{
	Name:      "grade",
	Usage:     "label every post in gold CSV files and report accuracy, precision, and recall",
	ArgsUsage: "<gold.csv>...",
	Flags: concatFlags(engineFlags, fetchFlags, []cli.Flag{
		&cli.BoolFlag{
			Name:  "offline",
			Usage: "use the gold file's Text column instead of fetching posts; rows without text are skipped",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "print per-post mismatches and the per-label table",
		},
		&cli.BoolFlag{
			Name:  "breakdown",
			Usage: "with --verbose, print every post, not only mismatches",
		},
		&cli.StringSliceFlag{
			Name:  "meta-label",
			Usage: "label excluded from scoring (repeatable); rules meta labels are always excluded",
			Value: cli.NewStringSlice(grading.DefaultReviewLabel),
		},
		&cli.StringFlag{
			Name:    "results-db",
			Usage:   "database URL to store run results in (eg, sqlite://data/grades.sqlite)",
			EnvVars: []string{"COERCION_RESULTS_DB"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "trace results database queries",
			EnvVars: []string{"COERCION_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:  "revision",
			Usage: "label for this labeler revision in stored results (defaults to build version)",
		},
	}),
	Action: runGrade,
}

func runGrade(cctx *cli.Context) error {
	ctx := cctx.Context
	if cctx.Args().Len() == 0 {
		return fmt.Errorf("need at least one gold CSV file")
	}
	shutdown := configOTEL("coercion")
	defer shutdown()

	svc, err := setupServices(ctx, cctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	var store *grading.ResultStore
	if dburl := cctx.String("results-db"); dburl != "" {
		db, err := cliutil.SetupDatabase(dburl, 1)
		if err != nil {
			return err
		}
		if cctx.Bool("db-tracing") {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return err
			}
		}
		store, err = grading.NewResultStore(db)
		if err != nil {
			return err
		}
	}
	revision := cctx.String("revision")
	if revision == "" {
		revision = versioninfo.Short()
	}

	var fetcher fetch.Fetcher = fetch.StaticFetcher{}
	if !cctx.Bool("offline") {
		fetcher = svc.fetcher(cctx)
	}
	runner := grading.Runner{
		Fetcher: fetcher,
		Labeler: svc.engine,
		Config: grading.Config{
			MetaLabels:    cctx.StringSlice("meta-label"),
			Meta:          svc.rules.Meta,
			KeepBreakdown: cctx.Bool("breakdown"),
		},
		Logger:         svc.logger,
		PreferGoldText: cctx.Bool("offline"),
	}

	verbose := cctx.Bool("verbose")
	var reports []*grading.Report
	for _, path := range cctx.Args().Slice() {
		rows, rejected, err := grading.LoadGoldCSV(path)
		if err != nil {
			return err
		}
		for _, re := range rejected {
			svc.logger.Warn("rejected gold row", "file", re.File, "line", re.Line, "err", re.Err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("%s: %w", path, grading.ErrNoValidRows)
		}

		rep, err := runner.Run(ctx, path, rows)
		if rep != nil {
			rep.Rejected = rejected
			reports = append(reports, rep)
			if werr := rep.WriteText(cctx.App.Writer, verbose); werr != nil {
				return werr
			}
			if store != nil {
				id, serr := store.SaveRun(ctx, rep, revision)
				if serr != nil {
					return serr
				}
				svc.logger.Info("stored grading run", "id", id, "gold", path, "revision", revision)
			}
		}
		if err != nil {
			return err
		}
	}

	if len(reports) > 1 {
		overall := grading.MergeReports("overall", reports...)
		// per-post detail was already printed per file
		overall.Posts, overall.Mismatches, overall.Skips, overall.Rejected = nil, nil, nil, nil
		if err := overall.WriteText(cctx.App.Writer, false); err != nil {
			return err
		}
	}
	return nil
}
