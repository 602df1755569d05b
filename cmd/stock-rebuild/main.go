// stock-rebuild recomputes running stock quantities from the transaction
// ledger. A medicine id limits the rebuild to one row; with no argument
// every stock row is swept.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/stock-rebuild [medicine_id]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dlclinic/clinic_backend/config"
	"github.com/dlclinic/clinic_backend/workflow"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		id, err := strconv.Atoi(os.Args[1])
		if err != nil || id <= 0 {
			fmt.Fprintf(os.Stderr, "invalid medicine id %q\n", os.Args[1])
			os.Exit(1)
		}
		qty, err := workflow.RebuildStockQuantity(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to rebuild stock for medicine %d: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("Medicine %d stock rebuilt: %d\n", id, qty)
		return
	}

	rebuilt, err := workflow.RebuildAllStockQuantities(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuilt %d stock rows; first error: %v\n", rebuilt, err)
		os.Exit(1)
	}
	fmt.Printf("Rebuilt %d stock rows\n", rebuilt)
}
