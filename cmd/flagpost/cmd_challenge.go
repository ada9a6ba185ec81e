package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// challengeFile is the YAML form of challenge definitions. Flags are
// plaintext here and digested before they are stored.
type challengeFile struct {
	Challenges []challengeDef `yaml:"challenges"`
}

type challengeDef struct {
	ID         string        `yaml:"id"`
	Title      string        `yaml:"title"`
	Category   string        `yaml:"category"`
	Difficulty int           `yaml:"difficulty"`
	Points     int           `yaml:"points"`
	Flag       string        `yaml:"flag"`
	Hints      []domain.Hint `yaml:"hints"`
	Inactive   bool          `yaml:"inactive"`
}

func (d challengeDef) toChallenge(useBcrypt bool) (*domain.Challenge, error) {
	category, err := domain.ParseCategory(d.Category)
	if err != nil {
		return nil, err
	}
	flag, err := domain.NormalizeAnswer(d.Flag)
	if err != nil {
		return nil, fmt.Errorf("challenge %s: %w", d.ID, err)
	}

	digest := domain.DigestFlag(flag)
	if useBcrypt {
		if digest, err = domain.DigestFlagBcrypt(flag, bcrypt.DefaultCost); err != nil {
			return nil, err
		}
	}

	c := &domain.Challenge{
		ID:         strings.TrimSpace(d.ID),
		Title:      d.Title,
		Category:   category,
		Difficulty: domain.Difficulty(d.Difficulty),
		Points:     d.Points,
		FlagDigest: digest,
		Hints:      d.Hints,
		Active:     !d.Inactive,
	}
	return c, c.Validate()
}

// saveDefs validates every definition before storing any of them
func saveDefs(ctx context.Context, store storage.Store, defs []challengeDef, useBcrypt bool) ([]*domain.Challenge, error) {
	challenges := make([]*domain.Challenge, 0, len(defs))
	for _, d := range defs {
		c, err := d.toChallenge(useBcrypt)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}

	err := store.InTx(ctx, func(tx storage.Store) error {
		for _, c := range challenges {
			if err := tx.Challenges().Save(ctx, c); err != nil {
				return fmt.Errorf("save %s: %w", c.ID, err)
			}
		}
		return nil
	})
	return challenges, err
}

func newChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Manage challenges",
	}
	cmd.AddCommand(newChallengeAddCmd(), newChallengeImportCmd(), newChallengeListCmd(), newChallengeDisableCmd())
	return cmd
}

func newChallengeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add or update a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := challengeDef{ID: args[0]}
			d.Title, _ = cmd.Flags().GetString("title")
			d.Category, _ = cmd.Flags().GetString("category")
			d.Difficulty, _ = cmd.Flags().GetInt("difficulty")
			d.Points, _ = cmd.Flags().GetInt("points")
			d.Flag, _ = cmd.Flags().GetString("flag")
			hintTexts, _ := cmd.Flags().GetStringArray("hint")
			hintCost, _ := cmd.Flags().GetInt("hint-cost")
			for _, text := range hintTexts {
				d.Hints = append(d.Hints, domain.Hint{Text: text, Cost: hintCost})
			}
			useBcrypt, _ := cmd.Flags().GetBool("bcrypt")

			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := saveDefs(cmd.Context(), rt.Store, []challengeDef{d}, useBcrypt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved challenge %s\n", d.ID)
			return nil
		},
	}
	cmd.Flags().String("title", "", "Challenge title")
	cmd.Flags().String("category", "misc", "Category: web, crypto, stego, forensics, binary, misc")
	cmd.Flags().Int("difficulty", 1, "Difficulty from 1 (easy) to 5 (insane)")
	cmd.Flags().Int("points", 100, "Base points")
	cmd.Flags().String("flag", "", "Correct flag (stored as a digest)")
	cmd.Flags().StringArray("hint", nil, "Authored hint, repeat for more levels")
	cmd.Flags().Int("hint-cost", 0, "Points each authored hint costs when scoring.authored_hint_costs is on")
	cmd.Flags().Bool("bcrypt", false, "Store the flag as a bcrypt digest")
	_ = cmd.MarkFlagRequired("flag")
	return cmd
}

func newChallengeImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Add or update challenges from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read challenges: %w", err)
			}
			var file challengeFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse challenges: %w", err)
			}
			useBcrypt, _ := cmd.Flags().GetBool("bcrypt")

			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			saved, err := saveDefs(cmd.Context(), rt.Store, file.Challenges, useBcrypt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d challenges\n", len(saved))
			return nil
		},
	}
	cmd.Flags().Bool("bcrypt", false, "Store flags as bcrypt digests")
	return cmd
}

func newChallengeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active challenges",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			challenges, err := rt.Store.Challenges().ListActive(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(challenges) == 0 {
				fmt.Fprintln(w, "No active challenges.")
				return nil
			}

			fmt.Fprintf(w, "%-16s  %-13s  %-7s  %6s  %6s  %7s  %s\n",
				"ID", "Category", "Level", "Points", "Solves", "Rate", "Title")
			fmt.Fprintln(w, strings.Repeat("─", 80))
			for _, c := range challenges {
				fmt.Fprintf(w, "%-16s  %-13s  %-7s  %6d  %6d  %6.1f%%  %s\n",
					c.ID, c.Category, c.Difficulty, c.Points, c.SolveCount, c.SuccessRate()*100, c.Title)
			}
			return nil
		},
	}
}

func newChallengeDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id>",
		Short: "Stop accepting submissions for a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			c, err := rt.Store.Challenges().Get(ctx, args[0])
			if err != nil {
				return err
			}
			c.Active = false
			if err := rt.Store.Challenges().Save(ctx, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disabled challenge %s\n", c.ID)
			return nil
		},
	}
}
