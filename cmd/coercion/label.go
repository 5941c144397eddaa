package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bluesky-social/coercion-labeler/fetch"
	"github.com/bluesky-social/coercion-labeler/labeling"

	cli "github.com/urfave/cli/v2"
)

var labelCmd = &cli.Command{
	Name:      "label",
	Usage:     "label post texts, or posts fetched by URL/AT-URI",
	ArgsUsage: "<text-or-locator>...",
	Description: "Each argument is labeled as post text, unless --fetch is set, in which case each argument is a post URL or AT-URI.\n" +
		"With no arguments, one post text per line is read from stdin.",
	Flags: concatFlags(engineFlags, fetchFlags, []cli.Flag{
		&cli.BoolFlag{
			Name:  "fetch",
			Usage: "treat arguments as post locators and fetch their text from the AppView",
		},
		&cli.BoolFlag{
			Name:  "explain",
			Usage: "also print which rules matched",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "output one JSON object per post",
		},
	}),
	Action: runLabel,
}

type labelOutput struct {
	Input   string            `json:"input"`
	URI     string            `json:"uri,omitempty"`
	Labels  labeling.LabelSet `json:"labels"`
	Matches []labeling.Match  `json:"matches,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func runLabel(cctx *cli.Context) error {
	ctx := cctx.Context
	shutdown := configOTEL("coercion")
	defer shutdown()

	svc, err := setupServices(ctx, cctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	inputs := cctx.Args().Slice()
	if len(inputs) == 0 {
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	var fetcher fetch.Fetcher
	if cctx.Bool("fetch") {
		fetcher = svc.fetcher(cctx)
	}

	enc := json.NewEncoder(cctx.App.Writer)
	for _, in := range inputs {
		out := labelOne(ctx, svc, fetcher, in, cctx.Bool("explain"))
		if cctx.Bool("json") {
			if err := enc.Encode(out); err != nil {
				return err
			}
			continue
		}
		printLabelOutput(cctx.App.Writer, out)
	}
	return nil
}

// With a nil fetcher, input is the post text itself.
func labelOne(ctx context.Context, svc *services, fetcher fetch.Fetcher, input string, explain bool) labelOutput {
	out := labelOutput{Input: input}
	text := input
	if fetcher != nil {
		post, err := fetcher.FetchPost(ctx, input)
		if err != nil {
			out.Error = err.Error()
			out.Labels = labeling.NewLabelSet()
			return out
		}
		text = post.Text
		out.URI = post.URI
	}
	matches := svc.engine.Matches(ctx, text)
	out.Labels = svc.engine.LabelMatches(matches)
	if explain {
		out.Matches = matches
	}
	return out
}

func printLabelOutput(w io.Writer, out labelOutput) {
	if out.Error != "" {
		fmt.Fprintf(w, "%s\terror: %s\n", out.Input, out.Error)
		return
	}
	fmt.Fprintf(w, "%s\t%s\n", out.Input, out.Labels)
	for _, m := range out.Matches {
		src := ""
		if m.Source != "" {
			src = " (" + m.Source + ")"
		}
		fmt.Fprintf(w, "  %s %s: %q%s\n", m.Kind, m.Label, m.Detail, src)
	}
}
