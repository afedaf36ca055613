package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	httpserver "github.com/fyrsmithlabs/buildscout/internal/http"
	"github.com/fyrsmithlabs/buildscout/internal/learning"
	"github.com/fyrsmithlabs/buildscout/internal/logging"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

var (
	// learn command flags
	learnComment      string
	learnOpponent     string
	learnMap          string
	learnDate         string
	learnResult       string
	learnRace         string
	learnDuration     string
	learnMachineGuess bool
)

func init() {
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(editCmd)

	learnCmd.Flags().StringVarP(&learnComment, "comment", "c", "", "strategy comment for this game (required)")
	learnCmd.Flags().StringVar(&learnOpponent, "opponent", "", "opponent name")
	learnCmd.Flags().StringVar(&learnMap, "map", "", "map name")
	learnCmd.Flags().StringVar(&learnDate, "date", "", "game date")
	learnCmd.Flags().StringVar(&learnResult, "result", "", "game result")
	learnCmd.Flags().StringVar(&learnRace, "race", "", "opponent race (inferred when empty)")
	learnCmd.Flags().StringVar(&learnDuration, "duration", "", "game length as m:ss or seconds")
	learnCmd.Flags().BoolVar(&learnMachineGuess, "machine-guess", false, "mark the comment as generated rather than written by a player")
	_ = learnCmd.MarkFlagRequired("comment")
}

var learnCmd = &cobra.Command{
	Use:   "learn <build-order.json>",
	Short: "Learn a pattern from a labeled game",
	Long: `Learn a build order pattern from one game and its strategy comment.

Games whose early-game signature matches a stored pattern are merged into it;
otherwise a new pattern is created. Flags override metadata in the file.

Examples:
  # Learn from a game file
  buildscout learn game.json --comment "12 pool into ling flood"

  # Learn from a bare build order with metadata flags
  buildscout learn build.json -c "proxy 2 rax" --opponent Maru --race terran --date 2024-03-01

  # Read the build order from stdin
  cat build.json | buildscout learn - -c "hatch first"`,
	Args: cobra.ExactArgs(1),
	RunE: runLearn,
}

var editCmd = &cobra.Command{
	Use:   "edit <pattern-id|opponent|date|opponent@date> <comment>",
	Short: "Replace a pattern's comment with a player-written one",
	Long: `Replace the comment of a stored pattern and mark it as player verified.

The pattern is found by pattern ID or by the opponent, date or opponent@date
of its game. When several games match, the most recent one wins.

Examples:
  buildscout edit pattern_007 "3 hatch before pool"
  buildscout edit Serral@2024-03-01 "roach ravager timing"`,
	Args: cobra.ExactArgs(2),
	RunE: runEdit,
}

func runLearn(cmd *cobra.Command, args []string) error {
	in, err := readGameFile(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	meta := in.GameMetadata
	if err := applyMetadataFlags(&meta); err != nil {
		return err
	}

	ctx, a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	buildorder.LogSkipped(a.logger.Underlying(), in.Skipped)

	ctx = logging.WithGame(ctx, gameKey(meta))
	var opts []learning.LearnOption
	if learnMachineGuess {
		opts = append(opts, learning.AsMachineGuess())
	}

	res, err := a.services.Ingest().Learn(ctx, learnComment, meta, opts...)
	if err != nil {
		a.logger.Error(ctx, "learn failed", zap.Error(err))
		return fmt.Errorf("failed to learn pattern: %w", err)
	}

	if outputAsJSON {
		return outputJSON(cmd.OutOrStdout(), httpserver.NewLearnResponse(res))
	}
	verb := "merged into"
	if res.Created {
		verb = "created"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (race %s, strategy %s, %d samples)\n",
		verb, res.PatternID, res.Race, res.Strategy, res.SampleCount)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx, a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	ctx = logging.WithGame(ctx, args[0])
	res, err := a.services.Ingest().Edit(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to edit pattern: %w", err)
	}

	if outputAsJSON {
		return outputJSON(cmd.OutOrStdout(), httpserver.NewEditResponse(res))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s (strategy %s)\n", res.PatternID, res.Strategy)
	return nil
}

// applyMetadataFlags overlays non-empty learn flags on meta.
func applyMetadataFlags(meta *patternstore.GameMetadata) error {
	if learnOpponent != "" {
		meta.Opponent = learnOpponent
	}
	if learnMap != "" {
		meta.Map = learnMap
	}
	if learnDate != "" {
		meta.Date = learnDate
	}
	if learnResult != "" {
		meta.Result = learnResult
	}
	if learnRace != "" {
		r := race.Parse(learnRace)
		if !r.IsKnown() {
			return fmt.Errorf("%w: %q", race.ErrUnknownRace, learnRace)
		}
		meta.Race = r
	}
	if learnDuration != "" {
		d, err := buildorder.ParseSeconds(learnDuration)
		if err != nil {
			return fmt.Errorf("invalid --duration: %w", err)
		}
		meta.Duration = d
	}
	return nil
}

func gameKey(meta patternstore.GameMetadata) string {
	switch {
	case meta.Opponent != "" && meta.Date != "":
		return meta.Opponent + "@" + meta.Date
	case meta.Opponent != "":
		return meta.Opponent
	default:
		return meta.Date
	}
}
