package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/scoring"
	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <player>",
		Short: "Register a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, err := rt.Engine.RegisterPlayer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", p.ID, p.Rank)
			return nil
		},
	}
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <player> <challenge> <flag>",
		Short: "Submit a flag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			req := scoring.SubmitRequest{PlayerID: args[0], ChallengeID: args[1], Answer: args[2]}
			if elapsed, _ := cmd.Flags().GetDuration("elapsed"); elapsed > 0 {
				req.ClientElapsed = &elapsed
			}

			out, err := rt.Engine.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch out.Status {
			case domain.OutcomeSolved:
				fmt.Fprintf(w, "Correct! +%d points (%d hints used)\n", out.PointsAwarded, out.HintsUsed)
				if out.SolveTimeSeconds != nil {
					fmt.Fprintf(w, "Solve time:   %s\n", time.Duration(*out.SolveTimeSeconds)*time.Second)
				}
			case domain.OutcomeAlreadySolved:
				fmt.Fprintln(w, "Already solved, no points awarded.")
			default:
				fmt.Fprintf(w, "Incorrect. Attempts so far: %d\n", out.Attempts)
			}
			fmt.Fprintf(w, "Total points: %d\n", out.TotalPoints)
			fmt.Fprintf(w, "Rank:         %s\n", out.Rank)
			fmt.Fprintf(w, "Streak:       %d\n", out.CurrentStreak)
			return nil
		},
	}
	cmd.Flags().Duration("elapsed", 0, "Time spent on the challenge, used for a first-try solve")
	return cmd
}

func newHintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hint <player> <challenge>",
		Short: "Unlock the next hint level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			h, err := rt.Hints.UnlockNext(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Hint %d: %s\n", h.Level, h.Text)
			fmt.Fprintf(w, "Costs %d points at solve time, %d hints left\n", h.Cost, h.Remaining)
			return nil
		},
	}
}

func newHintsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hints <player> <challenge>",
		Short: "Show hints already unlocked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			unlocked, err := rt.Hints.Unlocked(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(unlocked) == 0 {
				fmt.Fprintln(w, "No hints unlocked.")
				return nil
			}
			for _, h := range unlocked {
				fmt.Fprintf(w, "%d. %s\n", h.Level, h.Text)
			}
			return nil
		},
	}
}

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <player> [challenge]",
		Short: "Show a player's record, or their progress on one challenge",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if len(args) == 2 {
				pr, err := rt.Engine.Progress(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Challenge %s\n", args[1])
				fmt.Fprintf(w, "Solved:   %v\n", pr.Solved)
				fmt.Fprintf(w, "Attempts: %d\n", pr.Attempts)
				fmt.Fprintf(w, "Hints:    %d/%d\n", pr.HintsUsed, pr.MaxHints)
				return nil
			}

			p, err := rt.Store.Players().Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Player %s\n", p.ID)
			fmt.Fprintln(w, strings.Repeat("=", 7+len(p.ID)))
			fmt.Fprintf(w, "Points:     %d\n", p.TotalPoints)
			fmt.Fprintf(w, "Rank:       %s\n", p.Rank)
			fmt.Fprintf(w, "Completed:  %d\n", p.ChallengesCompleted)
			fmt.Fprintf(w, "Streak:     %d (longest %d)\n", p.CurrentStreak, p.LongestStreak)

			fmt.Fprintln(w, "\nSkills")
			fmt.Fprintln(w, "------")
			for _, c := range domain.Categories {
				s := p.Skill(c)
				level := (s - domain.MinSkill) / (domain.MaxSkill - domain.MinSkill)
				fmt.Fprintf(w, "%-14s %s %.1f\n", c, renderProgressBar(level, 20), s)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <player>",
		Short: "Show attempt totals, solve times and per-category results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if _, err := rt.Store.Players().Get(ctx, args[0]); err != nil {
				return err
			}
			s, err := rt.Store.Ledger().Stats(ctx, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Stats for %s\n", args[0])
			fmt.Fprintf(w, "Attempts: %d (%d correct, %d incorrect, %.0f%% success)\n",
				s.Attempts, s.Correct, s.Incorrect(), s.SuccessRate()*100)
			if s.Fastest == nil {
				fmt.Fprintln(w, "No solves yet.")
				return nil
			}
			fmt.Fprintf(w, "Fastest:  %s in %s\n", s.Fastest.ChallengeID, formatSeconds(float64(s.Fastest.Seconds)))
			fmt.Fprintf(w, "Slowest:  %s in %s\n", s.Slowest.ChallengeID, formatSeconds(float64(s.Slowest.Seconds)))

			fmt.Fprintf(w, "\n%-14s %-7s %s\n", "CATEGORY", "SOLVED", "AVG TIME")
			for _, c := range s.Categories {
				fmt.Fprintf(w, "%-14s %-7d %s\n", c.Category, c.Solved, formatSeconds(c.AvgSolveSeconds))
			}
			return nil
		},
	}
}

func formatSeconds(secs float64) string {
	return (time.Duration(secs) * time.Second).String()
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
