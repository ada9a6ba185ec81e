package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/queue"
	"github.com/spf13/cobra"
)

func newRecommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend <player>",
		Short: "Suggest unsolved challenges that suit the player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")

			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			recs, err := rt.Recommender.Recommend(cmd.Context(), args[0], count)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(w, "No suitable challenges right now.")
				return nil
			}

			fmt.Fprintf(w, "Predicted level: %s (%s, confidence %.2f)\n\n",
				recs[0].Prediction.PredictedDifficulty, recs[0].Prediction.Source, recs[0].Prediction.Confidence)
			for i, r := range recs {
				fmt.Fprintf(w, "%d. %-16s %-13s %-7s %4d pts  score %.3f\n",
					i+1, r.Challenge.ID, r.Challenge.Category, r.Challenge.Difficulty, r.Challenge.Points, r.Score)
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 5, "Number of recommendations")
	return cmd
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Retrain the recommendation model",
		Long: `Retrain the recommendation model from the submission ledger.

With --async the job is queued on RabbitMQ for flagpostd and the command
waits for its result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			synthetic, _ := cmd.Flags().GetInt("synthetic")
			seed, _ := cmd.Flags().GetInt64("seed")
			async, _ := cmd.Flags().GetBool("async")

			if async {
				return trainAsync(cmd, synthetic, seed)
			}

			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			var n int
			if synthetic > 0 {
				n, _, err = rt.Trainer.RunSynthetic(cmd.Context(), synthetic, seed)
			} else {
				n, _, err = rt.Trainer.RunOnce(cmd.Context())
			}
			w := cmd.OutOrStdout()
			if errors.Is(err, domain.ErrInsufficientTrainingData) {
				fmt.Fprintf(w, "Not enough data to train (%d samples). Keeping the current model.\n", n)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Trained model %s on %d samples\n", rt.Trainer.Version(), n)
			return nil
		},
	}
	cmd.Flags().Int("synthetic", 0, "Train on N generated samples instead of the ledger")
	cmd.Flags().Int64("seed", 1, "Seed for generated samples")
	cmd.Flags().Bool("async", false, "Queue the job for flagpostd and wait for the result")
	cmd.Flags().Duration("timeout", 10*time.Minute, "How long to wait for a queued job")
	return cmd
}

func trainAsync(cmd *cobra.Command, synthetic int, seed int64) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url := cfg.Recommend.RabbitMQURL
	if url == "" {
		url = os.Getenv("FLAGPOST_RABBITMQ_URL")
	}
	if url == "" {
		return errors.New("recommend.rabbitmq_url is not configured")
	}

	conn, err := queue.NewConnection(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := cmd.Context()
	results := queue.NewResultConsumer(conn)
	if err := results.Start(ctx); err != nil {
		return err
	}
	defer results.Stop()

	job := queue.NewTrainJob(currentUser(), synthetic, seed)
	if cfg.Recommend.JobTimeoutSeconds > 0 {
		job.Timeout = cfg.Recommend.JobTimeoutSeconds
	}
	wait := results.Expect(job.ID)
	if err := queue.NewProducer(conn).PublishTrainJob(ctx, job); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued training job %s\n", job.ID)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := wait(waitCtx)
	if err != nil {
		return fmt.Errorf("wait for job %s: %w", job.ID, err)
	}

	w := cmd.OutOrStdout()
	switch res.Status {
	case queue.StatusCompleted:
		fmt.Fprintf(w, "Trained model %s on %d samples in %s\n", res.Version, res.Samples, res.Duration.Round(time.Millisecond))
	case queue.StatusSkipped:
		fmt.Fprintf(w, "Not enough data to train (%d samples). Keeping the current model.\n", res.Samples)
	default:
		return fmt.Errorf("training job %s: %s", res.Status, res.Error)
	}
	return nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "flagpost"
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List stored model versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			versions, err := rt.Artifacts.Versions()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			current := rt.Trainer.Version()
			if len(versions) == 0 {
				fmt.Fprintln(w, "No trained models. Recommendations use the heuristic.")
				return nil
			}
			for _, v := range versions {
				marker := " "
				if v == current {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s\n", marker, v)
			}
			return nil
		},
	}
}
