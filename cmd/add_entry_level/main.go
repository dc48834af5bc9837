package main

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/infrastructure/storage"
)

func main() {
	store, err := storage.NewSQLiteStore("planner.db")
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Sample row: 10k allocated across three falling entries, averaging
	// enabled on two legs.
	row := domain.EntryLevelRow{
		Symbol:    "TATAMOTORS",
		Exchange:  "NSE",
		Allocated: 10000,
		Entry1:    950.0,
		Entry2:    910.0,
		Entry3:    math.NaN(),
		DAEnabled: true,
		DALegs:    2,
		DABuyback: [3]float64{5.0, 7.5, math.NaN()},
		Quality:   "A",
	}

	if err := store.UpsertEntryLevel(ctx, row); err != nil {
		log.Fatalf("Failed to save entry level: %v", err)
	}

	if err := store.UpsertInstrument(ctx, row.Exchange, row.Symbol, "NSE_EQ|INE155A01022"); err != nil {
		log.Fatalf("Failed to save instrument key: %v", err)
	}

	fmt.Printf("✅ Entry level row added successfully!\n")
	fmt.Printf("Symbol: %s\n", row.Symbol)
	fmt.Printf("Allocated: %.2f\n", row.Allocated)
	fmt.Printf("Entries: %v\n", row.EntryPrices())
	fmt.Printf("Averaging: enabled=%v legs=%d\n", row.DAEnabled, row.DALegs)
}
