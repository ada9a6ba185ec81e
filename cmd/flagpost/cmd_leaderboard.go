package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var errNoLeaderboard = errors.New("leaderboard is not configured (set leaderboard.addr)")

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard [player]",
		Short: "Show the top players, or one player's position",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Board == nil {
				return errNoLeaderboard
			}

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if len(args) == 1 {
				e, err := rt.Board.Position(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "#%d %s (%d points)\n", e.Position, e.PlayerID, e.Points)
				return nil
			}

			n, _ := cmd.Flags().GetInt("top")
			entries, err := rt.Board.Top(ctx, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%-4s  %-24s  %s\n", "#", "Player", "Points")
			fmt.Fprintln(w, strings.Repeat("─", 40))
			for _, e := range entries {
				fmt.Fprintf(w, "%-4d  %-24s  %d\n", e.Position, e.PlayerID, e.Points)
			}
			return nil
		},
	}
	cmd.Flags().IntP("top", "n", 10, "Number of players to show")
	return cmd
}

func newFeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show recent solves",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Board == nil {
				return errNoLeaderboard
			}

			n, _ := cmd.Flags().GetInt("limit")
			items, err := rt.Board.Feed(cmd.Context(), n)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, it := range items {
				fmt.Fprintf(w, "%s  %-16s solved %-16s +%d\n",
					it.SolvedAt.Local().Format("2006-01-02 15:04:05"), it.PlayerID, it.ChallengeID, it.Points)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Number of solves to show")
	return cmd
}
