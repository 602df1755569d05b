// reset-balances rebuilds every patient's running balance from the bills
// and payments on record. Run it when the aggregate is suspected to have
// drifted (e.g. after a manual data fix).
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/reset-balances [patient_id]
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
			fmt.Fprintf(os.Stderr, "invalid patient id %q\n", os.Args[1])
			os.Exit(1)
		}
		balance, err := workflow.RebuildPatientBalance(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to rebuild balance for patient %d: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("Patient %d balance rebuilt: %s\n", id, balance.StringFixed(2))
		return
	}

	rebuilt, err := workflow.RebuildAllPatientBalances(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuilt %d balances; first error: %v\n", rebuilt, err)
		os.Exit(1)
	}
	fmt.Printf("Rebuilt %d patient balances\n", rebuilt)
}
