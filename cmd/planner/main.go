package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/infrastructure/broker"
	"github.com/nitink/gtt_planner/internal/infrastructure/logger"
	"github.com/nitink/gtt_planner/internal/infrastructure/storage"
	"github.com/nitink/gtt_planner/internal/usecase"
	"github.com/nitink/gtt_planner/internal/web"
)

type Config struct {
	Broker struct {
		Name           string `yaml:"name"`
		QuoteBatchSize int    `yaml:"quote_batch_size"`
	} `yaml:"broker"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`
	Variance struct {
		AdjustTargetPct    float64 `yaml:"adjust_target_pct"`
		DeleteThresholdPct float64 `yaml:"delete_threshold_pct"`
	} `yaml:"variance"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "plan", "plan | place | analyze | adjust | delete | serve")
	strategy := flag.String("strategy", usecase.StrategyMultiLevel, "planner strategy for -mode plan")
	dryRun := flag.Bool("dry-run", false, "do not send orders to the broker")
	variance := flag.Float64("variance", 0, "override the configured variance threshold")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// The paper broker is the only adapter wired here; live broker adapters
	// plug in behind the same interface.
	paper := broker.NewPaperBroker()

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	quotes := usecase.NewQuoteCache(paper, store, paper, ttl, cfg.Broker.QuoteBatchSize, log)
	session := usecase.NewSessionCache(paper, store, store, quotes, ttl, log)

	planners := map[string]usecase.EntryPlanner{
		usecase.StrategySingleLevel:      usecase.NewSingleLevelPlanner(session, log),
		usecase.StrategyMultiLevel:       usecase.NewMultiLevelPlanner(session, log),
		usecase.StrategyDynamicAveraging: usecase.NewDynamicAveragingPlanner(session, log),
	}
	manager := usecase.NewOrderManager(session, store, log)

	ctx := context.Background()

	switch *mode {
	case "plan":
		runPlan(ctx, session, planners, *strategy, log)
	case "place":
		runPlace(ctx, session, manager, *dryRun, log)
	case "analyze":
		runAnalyze(ctx, manager, log)
	case "adjust":
		target := cfg.Variance.AdjustTargetPct
		if *variance > 0 {
			target = *variance
		}
		runAdjust(ctx, manager, target, log)
	case "delete":
		threshold := cfg.Variance.DeleteThresholdPct
		if *variance > 0 {
			threshold = *variance
		}
		runDelete(ctx, manager, threshold, log)
	case "serve":
		runServe(cfg, session, planners, manager, store, log)
	default:
		fmt.Printf("Unknown mode: %s\n", *mode)
		os.Exit(1)
	}
}

func runPlan(ctx context.Context, session *usecase.SessionCache, planners map[string]usecase.EntryPlanner, strategy string, log *zap.Logger) {
	planner, ok := planners[strategy]
	if !ok {
		log.Fatal("Unknown strategy", zap.String("strategy", strategy))
	}

	candidates, err := planner.IdentifyCandidates(ctx)
	if err != nil {
		log.Fatal("Failed to identify candidates", zap.Error(err))
	}
	planned, skipped, err := planner.GeneratePlan(ctx, candidates)
	if err != nil {
		log.Fatal("Failed to generate plan", zap.Error(err))
	}

	plan := domain.NewPlan(planned, skipped)
	if err := session.WritePlan(ctx, plan); err != nil {
		log.Fatal("Failed to persist plan", zap.Error(err))
	}

	log.Info("Plan persisted",
		zap.String("strategy", strategy),
		zap.Int("planned", len(planned)),
		zap.Int("skipped", len(skipped)))
	printJSON(plan)
}

func runPlace(ctx context.Context, session *usecase.SessionCache, manager *usecase.OrderManager, dryRun bool, log *zap.Logger) {
	plan, err := session.ReadPlan(ctx)
	if err != nil {
		log.Fatal("Failed to read plan", zap.Error(err))
	}

	results, err := manager.PlaceOrders(ctx, plan, dryRun)
	if err != nil {
		log.Fatal("Failed to place orders", zap.Error(err))
	}
	if !dryRun {
		if err := session.DeletePlan(ctx); err != nil {
			log.Error("Failed to delete consumed plan", zap.Error(err))
		}
	}
	printJSON(results)
}

func runAnalyze(ctx context.Context, manager *usecase.OrderManager, log *zap.Logger) {
	analysis, err := manager.Analyze(ctx)
	if err != nil {
		log.Fatal("Failed to analyze orders", zap.Error(err))
	}
	printJSON(analysis)

	dups, err := manager.DuplicateSymbols(ctx)
	if err != nil {
		log.Fatal("Failed to find duplicates", zap.Error(err))
	}
	if len(dups) > 0 {
		log.Warn("Symbols with duplicate active BUY orders", zap.Strings("symbols", dups))
	}

	total, err := manager.TotalBuyAmount(ctx, nil)
	if err != nil {
		log.Fatal("Failed to compute committed amount", zap.Error(err))
	}
	log.Info("Committed buy amount", zap.Float64("total", total))
}

func runAdjust(ctx context.Context, manager *usecase.OrderManager, target float64, log *zap.Logger) {
	analysis, err := manager.Analyze(ctx)
	if err != nil {
		log.Fatal("Failed to analyze orders", zap.Error(err))
	}
	modified, err := manager.AdjustOrders(ctx, analysis, target, usecase.AdjustTriggerAndOrderPrice)
	if err != nil {
		log.Fatal("Failed to adjust orders", zap.Error(err))
	}
	log.Info("Orders adjusted", zap.Int("count", len(modified)))
	printJSON(modified)
}

func runDelete(ctx context.Context, manager *usecase.OrderManager, threshold float64, log *zap.Logger) {
	analysis, err := manager.Analyze(ctx)
	if err != nil {
		log.Fatal("Failed to analyze orders", zap.Error(err))
	}
	deleted, err := manager.DeleteAboveVariance(ctx, analysis, threshold)
	if err != nil {
		log.Fatal("Failed to delete orders", zap.Error(err))
	}
	log.Info("Orders deleted", zap.Float64("threshold", threshold), zap.Strings("symbols", deleted))
}

func runServe(cfg *Config, session *usecase.SessionCache, planners map[string]usecase.EntryPlanner, manager *usecase.OrderManager, journal domain.PlacementJournal, log *zap.Logger) {
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, session, planners, manager, journal, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-stop
	log.Info("Shutting down...")
	server.Shutdown(context.Background())
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
