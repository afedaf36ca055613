package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/buildscout/internal/http"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

var (
	// unverified command flags
	unverifiedLimit int
)

func init() {
	rootCmd.AddCommand(unverifiedCmd)
	rootCmd.AddCommand(statsCmd)

	unverifiedCmd.Flags().IntVar(&unverifiedLimit, "limit", 20, "maximum number of patterns (0 for all)")
}

var unverifiedCmd = &cobra.Command{
	Use:   "unverified",
	Short: "List patterns without a player comment",
	Long: `List machine-guessed patterns, most recently seen first, so they can be
reviewed and labeled with "buildscout edit".

Examples:
  buildscout unverified
  buildscout unverified --limit 0 --json`,
	Args: cobra.NoArgs,
	RunE: runUnverified,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pattern library statistics",
	Long: `Show pattern, comment and keyword counts for the pattern library.

Examples:
  buildscout stats
  buildscout stats --data-dir ./games --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runUnverified(cmd *cobra.Command, args []string) error {
	ctx, a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	patterns := a.services.Learning().ListUnverified(unverifiedLimit)
	if outputAsJSON {
		return outputJSON(cmd.OutOrStdout(), httpserver.NewPatternViews(patterns))
	}
	printPatterns(cmd.OutOrStdout(), patterns)
	return nil
}

func printPatterns(out io.Writer, patterns []patternstore.Pattern) {
	if len(patterns) == 0 {
		fmt.Fprintln(out, "No unverified patterns")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tRACE\tOPPONENT\tDATE\tLAST SEEN\tSAMPLES\tCOMMENT")
	for _, p := range patterns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID,
			p.Race,
			truncate(p.Metadata.Opponent, 16),
			p.Metadata.Date,
			p.LastSeen.Format("2006-01-02 15:04"),
			p.SampleCount,
			truncate(p.Comment, 40))
	}
	w.Flush()
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	st := a.services.Store().Stats()
	if outputAsJSON {
		return outputJSON(cmd.OutOrStdout(), st)
	}
	printStats(cmd.OutOrStdout(), a.cfg.Store.DataDir, st)
	return nil
}

func printStats(out io.Writer, dir string, st patternstore.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Library:\t%s\n", dir)
	fmt.Fprintf(w, "Patterns:\t%d\n", st.TotalPatterns)
	fmt.Fprintf(w, "  Player verified:\t%d\n", st.PlayerVerified)
	fmt.Fprintf(w, "  Machine guessed:\t%d\n", st.MachineGuessed)
	fmt.Fprintf(w, "Comments:\t%d\n", st.TotalComments)
	fmt.Fprintf(w, "Keywords:\t%d\n", st.TotalKeywords)

	races := make([]race.Race, 0, len(st.ByRace))
	for r := range st.ByRace {
		races = append(races, r)
	}
	sort.Slice(races, func(i, j int) bool { return races[i] < races[j] })
	if len(races) > 0 {
		fmt.Fprintln(w, "By race:\t")
	}
	for _, r := range races {
		fmt.Fprintf(w, "  %s:\t%d\n", r, st.ByRace[r])
	}
	if !st.LastSaved.IsZero() {
		fmt.Fprintf(w, "Last saved:\t%s\n", st.LastSaved.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}
