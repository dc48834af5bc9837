package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/infrastructure/broker"
	"github.com/nitink/gtt_planner/internal/infrastructure/logger"
	"github.com/nitink/gtt_planner/internal/infrastructure/storage"
	"github.com/nitink/gtt_planner/internal/usecase"
)

// One-shot diagnostic: run each planner against the current entry-level
// config and print what would be ordered and what would be skipped, without
// touching the plan slot or the broker.
func main() {
	dbPath := "planner.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	log, err := logger.NewLogger("warn")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	paper := broker.NewPaperBroker()
	quotes := usecase.NewQuoteCache(paper, store, paper, 5*time.Minute, 0, log)
	session := usecase.NewSessionCache(paper, store, store, quotes, 5*time.Minute, log)

	ctx := context.Background()

	rows, err := store.ListEntryLevels(ctx)
	if err != nil {
		fmt.Printf("Failed to list entry levels: %v\n", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Println("No entry levels found in DB.")
		return
	}
	fmt.Printf("Found %d entry level rows.\n", len(rows))

	if dups := domain.DuplicateEntrySymbols(rows); len(dups) > 0 {
		fmt.Printf("⚠️  Duplicate symbols in entry levels: %v\n", dups)
	}

	planners := []usecase.EntryPlanner{
		usecase.NewSingleLevelPlanner(session, log),
		usecase.NewMultiLevelPlanner(session, log),
		usecase.NewDynamicAveragingPlanner(session, log),
	}

	for _, p := range planners {
		fmt.Printf("\n--------------------------------------------------\n")
		fmt.Printf("Strategy: %s\n", p.Strategy())

		candidates, err := p.IdentifyCandidates(ctx)
		if err != nil {
			fmt.Printf("❌ Failed to identify candidates: %v\n", err)
			continue
		}
		planned, skipped, err := p.GeneratePlan(ctx, candidates)
		if err != nil {
			fmt.Printf("❌ Failed to generate plan: %v\n", err)
			continue
		}

		fmt.Printf("Planned: %d, Skipped: %d\n", len(planned), len(skipped))
		for _, o := range planned {
			fmt.Printf("  ✅ %-12s %s qty=%d price=%.2f trigger=%.2f ltp=%.2f",
				o.Symbol, o.Level, o.Quantity, o.OrderPrice, o.TriggerPrice, o.LTP)
			if o.Leg != "" {
				fmt.Printf(" leg=%s", o.Leg)
			}
			fmt.Println()
		}
		for _, s := range skipped {
			fmt.Printf("  ❌ %-12s %s\n", s.Symbol, s.Reason)
		}
	}
}
