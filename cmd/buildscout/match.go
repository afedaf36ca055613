package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	httpserver "github.com/fyrsmithlabs/buildscout/internal/http"
	"github.com/fyrsmithlabs/buildscout/internal/matcher"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

var (
	// match command flags
	matchRace          string
	matchMinSimilarity float64
	matchLimit         int
	matchExplain       bool
)

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVar(&matchRace, "race", "", "opponent race (required)")
	matchCmd.Flags().Float64Var(&matchMinSimilarity, "min-similarity", -1, "lowest similarity to report (default: matching.min_similarity)")
	matchCmd.Flags().IntVar(&matchLimit, "limit", -1, "maximum number of matches (default: matching.limit, 0 for all)")
	matchCmd.Flags().BoolVar(&matchExplain, "explain", false, "show the score breakdown of each match")
	_ = matchCmd.MarkFlagRequired("race")
}

var matchCmd = &cobra.Command{
	Use:   "match <build-order.json>",
	Short: "Rank stored patterns against an opponent build",
	Long: `Rank stored patterns of the same race by similarity to a build order.

Only patterns at or above the similarity floor are listed, best first.
An empty result is not an error.

Examples:
  # Match a zerg build
  buildscout match build.json --race zerg

  # Lower the floor and show the score breakdown
  buildscout match build.json --race z --min-similarity 0.4 --explain

  # Top three matches as JSON
  buildscout match build.json --race protoss --limit 3 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func runMatch(cmd *cobra.Command, args []string) error {
	r := race.Parse(matchRace)
	if !r.IsKnown() {
		return fmt.Errorf("%w: %q", race.ErrUnknownRace, matchRace)
	}
	in, err := readGameFile(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	buildorder.LogSkipped(a.logger.Underlying(), in.Skipped)

	var opts []matcher.MatchOption
	if matchMinSimilarity >= 0 {
		opts = append(opts, matcher.WithThreshold(matchMinSimilarity))
	}
	results, err := a.services.Matcher().Match(ctx, in.BuildOrder, r, opts...)
	if err != nil {
		return fmt.Errorf("failed to match: %w", err)
	}

	limit := a.cfg.Matching.Limit
	if matchLimit >= 0 {
		limit = matchLimit
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("race", r.String()),
		attribute.Int("results", len(results)))
	a.logger.Debug(ctx, "match finished", zap.Int("results", len(results)))

	if outputAsJSON {
		return outputJSON(cmd.OutOrStdout(), httpserver.MatchResponse{
			Race:    r.String(),
			Matches: httpserver.NewMatchItems(results, matchExplain),
		})
	}
	printMatches(cmd.OutOrStdout(), results, matchExplain)
	return nil
}

func printMatches(out io.Writer, results []matcher.Result, explain bool) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching patterns")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if explain {
		fmt.Fprintln(w, "PATTERN\tSCORE\tFWD\tBWD\tTECH\tEXPAND\tMISSING\tCOMMENT")
	} else {
		fmt.Fprintln(w, "PATTERN\tSCORE\tSTRATEGY\tSAMPLES\tVERIFIED\tCOMMENT")
	}
	for _, res := range results {
		p := res.Pattern
		if explain {
			b := res.Breakdown
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
				p.ID, res.Similarity, b.Forward, b.Backward, b.TechPenalty, b.ExpansionPenalty,
				strings.Join(b.MissingCritical, ","), truncate(p.Comment, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%d\t%s\t%s\n",
			p.ID, res.Similarity, p.StrategyType, p.SampleCount, yesNo(p.HasPlayerComment), truncate(p.Comment, 40))
	}
	w.Flush()
}
