package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marketlens/pulse/internal/config"
	"github.com/marketlens/pulse/internal/scheduler"
	"github.com/marketlens/pulse/internal/store"
	"github.com/marketlens/pulse/pkg/alert"
	"github.com/marketlens/pulse/pkg/consensus"
	"github.com/marketlens/pulse/pkg/ingest"
	"github.com/marketlens/pulse/pkg/model"
	"github.com/marketlens/pulse/pkg/pipeline"
	"github.com/marketlens/pulse/pkg/predict"
	"github.com/marketlens/pulse/pkg/score"
	"github.com/marketlens/pulse/pkg/server"
	"github.com/marketlens/pulse/pkg/topic"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildPipeline(cfg *config.Config, reg prometheus.Registerer) *pipeline.Pipeline {
	scorer := score.NewModel(
		cfg.Scoring.DecayRate,
		cfg.Scoring.DecayFloor,
		cfg.Scoring.BoostStep,
		cfg.Scoring.BoostCap,
		cfg.Scoring.KeyEventCutoff,
		cfg.Scoring.ArchiveDays,
	)
	verifier := predict.NewVerifier(cfg.Verifier.StableTolerance)
	return pipeline.New(scorer, verifier, cfg.Schedule.Workers, reg)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runIngest(file string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var r io.Reader = os.Stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open payload %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	payload, err := ingest.Decode(r, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ingest payload: %w", err)
	}

	ctx := context.Background()
	for i := range payload.Events {
		if err := db.UpsertEvent(ctx, &payload.Events[i]); err != nil {
			return err
		}
	}
	for i := range payload.Investigations {
		if err := db.UpsertInvestigation(ctx, &payload.Investigations[i]); err != nil {
			return err
		}
	}
	for i := range payload.Predictions {
		if err := db.UpsertPrediction(ctx, &payload.Predictions[i]); err != nil {
			return err
		}
	}
	for i := range payload.Readings {
		if err := db.AddReading(ctx, &payload.Readings[i]); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "ingested %d events, %d investigations, %d predictions, %d readings\n",
		len(payload.Events), len(payload.Investigations), len(payload.Predictions), len(payload.Readings))
	return nil
}

func runEvaluate(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	pipe := buildPipeline(cfg, nil)
	sched := scheduler.New(db, pipe, alert.NewManager(nil),
		cfg.Schedule.ParseEvaluateInterval(),
		cfg.Consensus.AlertClarity, cfg.Consensus.MinSignals)

	batch, err := sched.Evaluate(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	}

	for _, e := range batch.Errors {
		fmt.Fprintf(os.Stderr, "skipped %s\n", e.Error())
	}
	fmt.Printf("events: %d, topics: %d, investigations: %d, predictions: %d\n",
		len(batch.Events), len(batch.Topics), len(batch.Investigations), len(batch.Predictions))
	fmt.Printf("consensus: %s (%d active signals)\n",
		batch.Consensus.Overall.Label, batch.Consensus.Overall.TotalSignals)
	return nil
}

func runConsensus(jsonOutput, byTrend bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	signals, err := db.ListPredictions(ctx, store.PredictionListOpts{
		Status: model.PredictionActive,
	})
	if err != nil {
		return fmt.Errorf("list signals: %w", err)
	}

	now := time.Now().UTC()
	overall := consensus.Compute(signals, now)

	var groups []consensus.Group
	if byTrend {
		groups = consensus.GroupBy(signals, now, func(p model.Prediction) string {
			ev, err := db.GetEvent(ctx, p.SourceEventID)
			if err != nil || ev.Topic == "" {
				return consensus.UnknownIndicator
			}
			return topic.Normalize(ev.Topic)
		})
	} else {
		groups = consensus.GroupByIndicator(signals, now)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"overall": overall, "groups": groups})
	}

	fmt.Printf("overall: %s (%d up / %d down / %d stable)\n\n",
		overall.Label, overall.UpCount, overall.DownCount, overall.StableCount)

	if len(groups) == 0 {
		fmt.Println("no active signals (try ingesting a payload first: pulse ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tSIGNALS\tBULLISH\tLABEL")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%d%%\t%s\n", g.Key, g.TotalSignals, g.BullishPct, g.Label)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	pipe := buildPipeline(cfg, reg)
	sched := scheduler.New(db, pipe, alert.NewManager(nil),
		cfg.Schedule.ParseEvaluateInterval(),
		cfg.Consensus.AlertClarity, cfg.Consensus.MinSignals)

	srv := server.New(db, sched, reg, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	pipe := buildPipeline(cfg, reg)
	alertMgr := buildAlertManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, pipe, alertMgr,
		cfg.Schedule.ParseEvaluateInterval(),
		cfg.Consensus.AlertClarity, cfg.Consensus.MinSignals)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	// Start HTTP server.
	srv := server.New(db, sched, reg, port)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}
