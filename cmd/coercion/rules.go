package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bluesky-social/coercion-labeler/labeling"

	cli "github.com/urfave/cli/v2"
	"github.com/xlab/treeprint"
)

var checkRulesCmd = &cli.Command{
	Name:  "check-rules",
	Usage: "load and validate the rules manifest, and summarize it",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "list",
			Usage: "print every rule",
		},
	},
	Action: func(cctx *cli.Context) error {
		w := cctx.App.Writer
		rules, err := labeling.LoadRules(cctx.String("rules"))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "rules:    %s\n", rules.Summary())
		fmt.Fprintf(w, "labels:   %s\n", strings.Join(rules.Labels(), ", "))
		fmt.Fprintf(w, "meta:     %s\n", strings.Join(rules.Meta.Names(), ", "))
		fmt.Fprintf(w, "prefixes: %s\n", strings.Join(rules.Meta.Prefixes(), ", "))
		if len(rules.Severity) > 0 {
			labels := make([]string, 0, len(rules.Severity))
			for l := range rules.Severity {
				labels = append(labels, l)
			}
			sort.Strings(labels)
			parts := make([]string, 0, len(labels))
			for _, l := range labels {
				parts = append(parts, fmt.Sprintf("%s=%d", l, rules.Severity[l]))
			}
			fmt.Fprintf(w, "severity: %s\n", strings.Join(parts, " "))
		}
		if !cctx.Bool("list") {
			return nil
		}
		fmt.Fprintln(w, rulesTree(rules).String())
		return nil
	},
}

// Groups rules under their label, in label order, for display.
func rulesTree(rules *labeling.Rules) treeprint.Tree {
	tree := treeprint.NewWithRoot("rules")
	branches := map[string]treeprint.Tree{}
	for _, label := range rules.Labels() {
		branches[label] = tree.AddBranch(label)
	}
	for _, rule := range rules.Rules {
		branch := branches[rule.RuleLabel()]
		switch r := rule.(type) {
		case labeling.TermRule:
			branch.AddMetaNode(r.RuleKind(), fmt.Sprintf("%q boundary=%s case_sensitive=%v (%s)", r.Term, r.Boundary, r.CaseSensitive, r.Source))
		case labeling.RegexRule:
			branch.AddMetaNode(r.RuleKind(), fmt.Sprintf("%s (%s)", r.Pattern, r.Source))
		case labeling.IndicatorRule:
			branch.AddMetaNode(r.RuleKind(), fmt.Sprintf("%s: %d terms boundary=%s", r.List, len(r.Terms), r.Boundary))
		case labeling.ScoreRule:
			branch.AddMetaNode(r.RuleKind(), fmt.Sprintf("threshold=%v", r.Threshold))
		}
	}
	return tree
}
