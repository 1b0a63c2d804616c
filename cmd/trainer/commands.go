package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"PriceCast/internal/di"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

var (
	configPath string
	ticker     string
	startDate  string
	epochs     int
	schedule   string
	runsLimit  int

	rootCmd = &cobra.Command{
		Use:   "trainer",
		Short: "Train the closing price model and write its artifacts",
		Long: `trainer downloads daily closes for one ticker, fits the LSTM
forecaster and writes stock_model.json, scaler.json and metadata.json
into the model directory read by the forecast service.`,
		SilenceUsage: true,
		RunE:         runTrain,
	}

	trainCmd = &cobra.Command{
		Use:   "train",
		Short: "Run one training pass, or keep retraining on --schedule",
		RunE:  runTrain,
	}

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List recent training runs from the ledger",
		RunE:  runRuns,
	}

	syncCmd = &cobra.Command{
		Use:   "sync-history",
		Short: "Copy daily closes from Yahoo Finance into the ClickHouse archive",
		RunE:  runSync,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	for _, c := range []*cobra.Command{rootCmd, trainCmd, syncCmd} {
		c.Flags().StringVar(&ticker, "ticker", "", "ticker symbol (default from config)")
		c.Flags().StringVar(&startDate, "start", "", "first day of history, YYYY-MM-DD (default from config)")
	}
	for _, c := range []*cobra.Command{rootCmd, trainCmd} {
		c.Flags().IntVar(&epochs, "epochs", 0, "maximum epochs (default from config)")
		c.Flags().StringVar(&schedule, "schedule", "", "cron expression; retrain on this schedule instead of exiting")
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to list")

	rootCmd.AddCommand(trainCmd, runsCmd, syncCmd)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	if ticker != "" {
		cfg.Training.Ticker = ticker
	}
	if startDate != "" {
		cfg.Training.StartDate = startDate
	}
	if epochs > 0 {
		cfg.Training.Epochs = epochs
	}
	if schedule != "" {
		cfg.Training.Schedule = schedule
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	t, err := di.InitializeTrainer(cfg, di.Program("trainer"))
	if err != nil {
		return err
	}
	defer t.Close()

	ctx, stop := signalContext()
	defer stop()

	if cfg.Training.Schedule == "" {
		res, err := t.UseCase.Train(ctx, t.Config)
		if err != nil {
			return err
		}
		printResult(cmd, t.Config, res)
		return nil
	}
	return trainOnSchedule(ctx, t, cfg.Training.Schedule)
}

// trainOnSchedule retrains whenever the cron expression fires until the
// process is interrupted. Overlapping firings are skipped.
func trainOnSchedule(ctx context.Context, t *di.Trainer, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := t.UseCase.Train(ctx, t.Config); err != nil {
			t.Logger.Error("scheduled training failed", applogger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", spec, err)
	}

	c.Start()
	t.Logger.Info("training scheduled", applogger.String("schedule", spec), applogger.String("ticker", t.Config.Ticker))
	<-ctx.Done()

	<-c.Stop().Done()
	t.Logger.Info("scheduler stopped")
	return nil
}

func printResult(cmd *cobra.Command, cfg usecase.TrainingConfig, res *usecase.TrainingResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nModel trained for %s (run %s)\n", res.Metadata.Ticker, res.Metadata.RunID)
	fmt.Fprintf(out, "  observations:  %d\n", res.Run.Observations)
	fmt.Fprintf(out, "  train/test:    %d/%d\n", res.Run.TrainSamples, res.Run.TestSamples)
	fmt.Fprintf(out, "  epochs run:    %d\n", res.Metadata.EpochsRun)
	fmt.Fprintf(out, "  test loss:     %.6f\n", res.Metadata.TestLoss)
	fmt.Fprintf(out, "  test MAE:      %.6f\n", res.Metadata.TestMAE)
	fmt.Fprintf(out, "  artifacts in:  %s\n", cfg.ModelDir)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	t, err := di.InitializeTrainer(cfg, di.Program("trainer"))
	if err != nil {
		return err
	}
	defer t.Close()

	runs, err := t.UseCase.Runs(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-8s  %-10s  %-20s  %6s  %10s  %10s\n",
		"RUN", "TICKER", "STATUS", "STARTED", "EPOCHS", "TEST_LOSS", "TEST_MAE")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-8s  %-10s  %-20s  %6d  %10.6f  %10.6f\n",
			r.ID, r.Ticker, r.Status, r.StartedAt.Local().Format(time.DateTime),
			r.EpochsRun, r.TestLoss, r.TestMAE)
		if r.Error != "" {
			fmt.Fprintf(out, "    error: %s\n", r.Error)
		}
	}
	return nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.ClickHouse.Enabled = true

	t, err := di.InitializeTrainer(cfg, di.Program("trainer"))
	if err != nil {
		return err
	}
	defer t.Close()

	ctx, stop := signalContext()
	defer stop()

	sym := t.Config.Ticker
	series, err := t.Yahoo.DailyCloses(ctx, sym, t.Config.Start, time.Now())
	if err != nil {
		return fmt.Errorf("fetch %s: %w", sym, err)
	}
	if series.Len() == 0 {
		return fmt.Errorf("no daily closes for %s since %s", sym, util.FormatDay(t.Config.Start))
	}
	if err := t.Archive.StoreBars(ctx, series); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d daily closes for %s (%s .. %s)\n",
		series.Len(), sym,
		util.FormatDay(series.Points[0].Date), util.FormatDay(series.Last().Date))
	return nil
}
