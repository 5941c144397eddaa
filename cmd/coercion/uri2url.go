package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bluesky-social/coercion-labeler/grading"
	"github.com/bluesky-social/coercion-labeler/postref"

	cli "github.com/urfave/cli/v2"
)

var uri2urlCmd = &cli.Command{
	Name:      "uri2url",
	Usage:     "convert AT-URIs to bsky.app URLs, or an annotation CSV in to gold-file shape",
	ArgsUsage: "<at-uri>...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "csv",
			Usage: "input CSV with uri and Labels columns (\"-\" for stdin)",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "output CSV path; defaults to stdout",
		},
	},
	Action: func(cctx *cli.Context) error {
		in := cctx.String("csv")
		if in == "" {
			if cctx.Args().Len() == 0 {
				return fmt.Errorf("need AT-URIs as arguments, or --csv")
			}
			for _, raw := range cctx.Args().Slice() {
				fmt.Fprintln(cctx.App.Writer, postref.URIToURL(raw))
			}
			return nil
		}

		var r io.Reader = os.Stdin
		if in != "-" {
			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		var w io.Writer = cctx.App.Writer
		if p := cctx.String("out"); p != "" {
			f, err := os.Create(p)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		n, err := grading.ConvertLocatorCSV(r, w)
		if err != nil {
			return err
		}
		slog.Info("converted annotation CSV", "rows", n, "input", in)
		return nil
	},
}
