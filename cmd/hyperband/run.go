package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/determined-ai/hyperband/internal/candidates"
	"github.com/determined-ai/hyperband/internal/config"
	"github.com/determined-ai/hyperband/internal/db"
	"github.com/determined-ai/hyperband/internal/prom"
	"github.com/determined-ai/hyperband/internal/trainer"
	"github.com/determined-ai/hyperband/pkg/model"
	"github.com/determined-ai/hyperband/pkg/searcher"
)

const (
	runNameWords = 2
	runNameSep   = "-"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a search with the simulated trainer and print its summary as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := initializeConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return runSearch(ctx, c, cmd.OutOrStdout())
	},
}

func runSearch(ctx context.Context, c *config.Config, out io.Writer) error {
	schedule, err := searcher.NewSchedule(c.Hyperband)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	cs, err := loadCandidates(c, schedule.TotalConfigs())
	if err != nil {
		return err
	}

	if c.Metrics.Port > 0 {
		registry := prometheus.NewRegistry()
		if err := prom.Register(registry); err != nil {
			return errors.Wrap(err, "registering metrics")
		}
		stop := serveMetrics(c.Metrics.Port, registry)
		defer stop()
	}

	clock := clockwork.NewRealClock()
	var t searcher.Trainer = trainer.NewSimulated(c.Simulation, clock)
	t = trainer.WithTimeout(t, time.Duration(c.TrainerTimeout))
	t = trainer.WithRetry(t, c.Retry)
	t = trainer.WithMetrics(t)

	runName := c.RunName
	if runName == "" {
		runName = petname.Generate(runNameWords, runNameSep)
	}
	executor, err := searcher.NewDiagonalExecutor(uuid.New(), schedule, t, store,
		searcher.WithClock(clock),
		searcher.WithRunName(runName),
		searcher.WithRoundHook(prom.ObserveRound),
	)
	if err != nil {
		return err
	}

	summary, err := executor.Run(ctx, cs)
	if err != nil {
		return err
	}
	bs, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding summary")
	}
	_, err = out.Write(append(bs, '\n'))
	return err
}

func openStore(ctx context.Context, c *config.Config) (searcher.ResultStore, func(), error) {
	switch c.Store {
	case config.PostgresStore:
		pg, err := db.Setup(ctx, &c.DB)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				log.WithError(err).Error("failed to close database")
			}
		}, nil
	default:
		return db.NewMemoryStore(), func() {}, nil
	}
}

func loadCandidates(c *config.Config, n int) ([]model.Candidate, error) {
	if c.Candidates == "" {
		log.Infof("no candidates file given, using %d placeholder candidates", n)
		return candidates.Placeholders(n), nil
	}
	return candidates.Load(c.Candidates)
}
