package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timvw/shapeqa/internal/agent"
	"github.com/timvw/shapeqa/internal/config"
	"github.com/timvw/shapeqa/internal/dataset"
	"github.com/timvw/shapeqa/internal/eval"
	"github.com/timvw/shapeqa/internal/judge"
	"github.com/timvw/shapeqa/internal/logging"
	"github.com/timvw/shapeqa/internal/model"
	telem "github.com/timvw/shapeqa/internal/otel"
	"github.com/timvw/shapeqa/internal/output"
	"github.com/timvw/shapeqa/internal/scene"
	"github.com/timvw/shapeqa/internal/ui"
	"github.com/timvw/shapeqa/internal/vision"
	"github.com/timvw/shapeqa/internal/vlm"
)

var (
	flagMode        string
	flagSampleIndex int
	flagDataset     string
	flagImagesDir   string
	flagOutputDir   string
	flagLogPath     string
	flagProgress    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an evaluation over the dataset",
	Long: `Answer every dataset question with the selected agent, judge each
answer against the ground truth and report accuracy.

Modes:
  zero_shot    question and image only
  classic      detector scene context, one model call
  dl           plan, extract, synthesize (three model calls)
  all          zero_shot, classic and dl in turn over the full dataset
  show_sample  print one row and the detector's view of its image

Records are appended to records.jsonl and records.csv in the output
directory as each row finishes; summary.json is written at the end.
Rows the judge cannot decide are recorded as unknown and excluded from
accuracy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluation(cmd)
	},
}

func init() {
	runCmd.Flags().StringVar(&flagMode, "mode", "", "zero_shot, classic, dl, all, show_sample (default: all)")
	runCmd.Flags().IntVar(&flagSampleIndex, "sample_index", 0, "dataset row shown by show_sample")
	runCmd.Flags().StringVar(&flagDataset, "dataset", "", "dataset CSV (default: data/dataset.csv)")
	runCmd.Flags().StringVar(&flagImagesDir, "images-dir", "", "directory holding the dataset images (default: data/images)")
	runCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "directory for records and summary (default: results)")
	runCmd.Flags().StringVar(&flagLogPath, "log-path", "", "rotating JSON log file (default: logs/evaluation.log)")
	runCmd.Flags().BoolVar(&flagProgress, "progress", false, "show a progress bar (default: on when stderr is a terminal)")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies the run flags the user set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = flagMode
	}
	if flags.Changed("sample_index") {
		cfg.SampleIndex = flagSampleIndex
	}
	if flags.Changed("dataset") {
		cfg.DatasetPath = flagDataset
	}
	if flags.Changed("images-dir") {
		cfg.ImagesDir = flagImagesDir
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = flagOutputDir
	}
	if flags.Changed("log-path") {
		cfg.LogPath = flagLogPath
	}
}

// progressEnabled honours --progress when given, otherwise checks stderr.
func progressEnabled(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("progress") {
		return flagProgress
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runEvaluation(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mode, err := model.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	showProgress := mode != model.ModeShowSample && progressEnabled(cmd)
	log, closeLog, err := logging.New(logging.Options{
		Path:    cfg.LogPath,
		Verbose: flagVerbose,
		Quiet:   showProgress,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closeLog()

	if cfg.ConfigFile != "" {
		log.Info("config loaded", zap.String("path", cfg.ConfigFile))
	}

	ds, err := dataset.Load(cfg.DatasetPath, cfg.ImagesDir, log)
	if err != nil {
		log.Error("dataset unavailable", zap.Error(err))
		return err
	}
	detector := vision.NewDetector(cfg.Detector, log)
	theme := ui.ThemeByName(cfg.Theme)

	if mode == model.ModeShowSample {
		return showSample(cmd, ds, detector, cfg.SampleIndex, theme, log)
	}

	tel, err := telem.Init(ctx, telem.Config{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
		Version:  Version,
	})
	if err != nil {
		log.Warn("otel init failed", zap.Error(err))
	}
	var metrics *telem.Metrics
	if tel != nil {
		defer tel.Shutdown(context.Background())
		metrics = tel.Metrics
	}

	candidate, closeCandidate, err := newBackend(ctx, candidateSpec(cfg), cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	defer closeCandidate()
	judgeBackend, closeJudge, err := newBackend(ctx, judgeSpec(cfg), cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("judge backend: %w", err)
	}
	defer closeJudge()

	agents, err := buildAgents(cfg, candidate, detector, metrics, log)
	if err != nil {
		return err
	}

	var cache *judge.VerdictCache
	if cfg.JudgeCacheTTLDuration > 0 {
		cache = judge.NewVerdictCache(cfg.JudgeCacheTTLDuration)
	}
	j := judge.New(withRetry(judgeBackend, cfg, log), judge.Options{Cache: cache, Log: log, Metrics: metrics})

	sink, err := output.Open(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer sink.Close()

	driverCfg := eval.Config{
		Agents:  agents,
		Judge:   j,
		Sink:    sink,
		Log:     log,
		Metrics: metrics,
	}
	var progress *ui.Progress
	if showProgress {
		progress = ui.NewProgress(os.Stderr, theme, stop)
		driverCfg.Reporter = progress
		progress.Start()
	}
	driver := eval.New(driverCfg)

	log.Info("run started",
		zap.String("run_id", driver.RunID()),
		zap.String("mode", string(mode)),
		zap.Int("rows", ds.Len()),
		zap.String("provider", candidate.Provider()),
		zap.String("model", candidate.Model()),
		zap.String("judge_model", judgeBackend.Model()))

	started := time.Now().UTC()
	results, runErr := driver.Run(ctx, mode, ds.Samples())
	if progress != nil {
		if err := progress.Stop(); err != nil {
			log.Warn("progress display failed", zap.Error(err))
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	path, err := output.WriteSummary(cfg.OutputDir, output.Summary{
		RunID:      driver.RunID(),
		Dataset:    ds.Path,
		Provider:   candidate.Provider(),
		Model:      candidate.Model(),
		JudgeModel: judgeBackend.Model(),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Results:    results,
	})
	if err != nil {
		return err
	}
	if stats := cache.Stats(); stats.Hits+stats.Misses > 0 {
		log.Info("judge cache", zap.Int("entries", stats.Entries), zap.Int64("hits", stats.Hits), zap.Int64("misses", stats.Misses))
	}
	log.Info("summary written", zap.String("path", path))

	fmt.Fprintln(cmd.OutOrStdout(), ui.SummaryTable(results, theme))
	if runErr != nil {
		log.Warn("run interrupted, summary covers completed rows")
	}
	return nil
}

// buildAgents creates the three agents. Zero-shot and classic retry each
// backend call; chain-of-thought retries per stage.
func buildAgents(cfg *config.Config, b vlm.Backend, detector *vision.Detector, metrics *telem.Metrics, log *zap.Logger) (map[model.Mode]agent.Agent, error) {
	single := agent.Deps{Backend: withRetry(b, cfg, log), Log: log, Metrics: metrics}
	staged := agent.Deps{Backend: b, Log: log, Metrics: metrics}

	stageRetry := map[agent.Stage]vlm.RetryPolicy{}
	for _, st := range []agent.Stage{agent.StagePlan, agent.StageExtract, agent.StageSynthesize} {
		stageRetry[st] = retryPolicy(cfg)
	}

	agents := make(map[model.Mode]agent.Agent, len(model.AgentModes))
	for _, m := range model.AgentModes {
		deps := single
		if m == model.ModeDL {
			deps = staged
		}
		a, ok := agent.New(m, deps, detector, stageRetry)
		if !ok {
			return nil, fmt.Errorf("no agent for mode %q", m)
		}
		agents[m] = a
	}
	return agents, nil
}

// showSample prints one dataset row with the detector's scene context. An
// unreadable image still prints the card, with an empty scene.
func showSample(cmd *cobra.Command, ds *dataset.Dataset, detector *vision.Detector, index int, theme ui.Theme, log *zap.Logger) error {
	s, err := ds.Sample(index)
	if err != nil {
		return err
	}
	objects, err := detector.DetectFile(s.ImagePath)
	if err != nil {
		var loadErr *vision.ImageLoadError
		if !errors.As(err, &loadErr) {
			return err
		}
		log.Warn("image file not found, showing sample without detections",
			zap.String("question_id", s.ID),
			zap.String("path", s.ImagePath),
			zap.Error(err))
		objects = nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SampleCard(index, s, scene.New(objects), theme))
	return nil
}
