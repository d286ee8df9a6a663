/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: run.go
Description: `fuzzcore run` drives N lanes. It does not load an external
target (for example as a Go plugin); it exercises the engine with a
caller-independent self-test target so the CLI itself
stays runnable without an external test function wired in. Real
integrations import pkg/engine directly and supply their own TestFunc
and Mutator.
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/kleascm/fuzzcore/internal/feature"
	"github.com/kleascm/fuzzcore/internal/rng"
	"github.com/kleascm/fuzzcore/pkg/engine"
	"github.com/kleascm/fuzzcore/pkg/fuzzconfig"
	"github.com/kleascm/fuzzcore/pkg/metrics"
	"github.com/kleascm/fuzzcore/pkg/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the fuzzing engine's lanes against a self-test target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd)
		},
	}
	if err := fuzzconfig.BindFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	return cmd
}

func runEngine(cmd *cobra.Command) error {
	cfg, err := fuzzconfig.Load(v, configFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogDir, cfg.JSONLogs)
	if err != nil {
		return fmt.Errorf("run: failed to initialize logger: %w", err)
	}
	defer logger.Close()

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg, "fuzzcore")
	if err != nil {
		return fmt.Errorf("run: failed to initialize metrics: %w", err)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	dirWorld, err := world.NewDirWorld(cfg.CorpusDir)
	if err != nil {
		return err
	}
	seeds, err := dirWorld.LoadSeeds()
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		seeds = [][]byte{{0}}
	}

	lanes := make([]*engine.Lane, cfg.Lanes)
	for i := 0; i < cfg.Lanes; i++ {
		lane := engine.NewLane(i, cfg.Seed+uint32(i), cfg.MaxNumGuards, cfg.FavoredOdds, dirWorld, selfTestMutator, nil, logger.GetLogger())
		laneID := i
		lane.Sensor().OnSaturate(func(numGuards uint32) {
			logger.Warn("guard table saturated", map[string]interface{}{"lane": laneID, "num_guards": numGuards})
		})
		lane.SetTest(selfTestFunc(lane))
		lane.SetMetrics(collector)
		lane.SetEventLog(logger)
		lane.Pool().SetScores(feature.Scores{
			Edge:       cfg.FeatureScoreEdge,
			Indirect:   cfg.FeatureScoreIndirect,
			Comparison: cfg.FeatureScoreComparison,
		})
		for _, seed := range seeds {
			if err := lane.Seed(seed, float64(len(seed)+1)); err != nil {
				logger.Warn("seed rejected", map[string]interface{}{"lane": i, "error": err.Error()})
			}
		}
		lanes[i] = lane
	}

	runner := engine.NewRunner(lanes...)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runner.RunUntilCancel(ctx, func(lane *engine.Lane, err error) {
		logger.Error("lane stopped", map[string]interface{}{"lane": lane.ID, "error": err.Error()})
	})

	for _, lane := range lanes {
		executions, accepted, crashes := lane.Stats()
		collector.PoolSize.Set(float64(lane.Pool().Len()))
		collector.PoolScore.Set(lane.Pool().CoverageScore())
		logger.LogPoolStats(lane.Pool().Len(), lane.Pool().CoverageScore(), map[string]interface{}{
			"lane": lane.ID, "executions": executions, "accepted": accepted, "crashes": crashes,
		})
	}

	if err == context.Canceled {
		return nil
	}
	return err
}

// selfTestMutator is the engine's own deterministic placeholder mutator:
// it flips one pseudo-random byte of the parent, extending the input by
// one byte roughly every eighth mutation. Real deployments supply their
// own mutator catalogue; this one exists so `fuzzcore run` is runnable
// standalone.
func selfTestMutator(rand *rng.LCG, parent []byte) ([]byte, float64) {
	mutated := append([]byte{}, parent...)
	if len(mutated) == 0 || rand.IntInRange(0, 8) == 0 {
		mutated = append(mutated, byte(rand.Next()))
	} else {
		idx := rand.IntInRange(0, uint64(len(mutated)))
		mutated[idx] = byte(rand.Next())
	}
	return mutated, float64(len(mutated))
}

// selfTestFunc builds a target that feeds byte values into the lane's
// own sensor as edge and comparison events, giving the demo loop real
// feedback to chase without depending on an external binary.
func selfTestFunc(lane *engine.Lane) engine.TestFunc {
	guards := make([]uint32, 256)
	lane.Sensor().HandlePCGuardInit(guards)

	return func(unit []byte) bool {
		for i, b := range unit {
			lane.Sensor().HandlePCGuard(guards[b])
			if i > 0 {
				lane.Sensor().HandleTraceCmp8(uint64(i), b, unit[i-1])
			}
		}
		return false
	}
}
