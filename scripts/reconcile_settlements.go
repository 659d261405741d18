package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"outsourcing-market/internal/settlement"
)

// Recomputes every stored settlement from its gross amount and rate and
// reports rows whose commission or payout disagree.
//
// This is the same check as `migrate reconcile`, kept for read-only
// replicas: it needs nothing but DATABASE_URL and SELECT access, so it runs
// without the app config, the JWT secret or gorm.
//
//	DATABASE_URL=postgres://... go run ./scripts
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	rows, err := db.Query(`
		SELECT id, reference_type, reference_id, gross_amount, commission_rate,
		       commission_amount, payout_amount
		FROM settlements
		ORDER BY id
	`)
	if err != nil {
		log.Fatal("Failed to query settlements:", err)
	}
	defer rows.Close()

	var checked, mismatched int
	for rows.Next() {
		var (
			id             int64
			refType, ref   string
			stored         settlement.Split
			commissionRate decimal.Decimal
		)
		if err := rows.Scan(&id, &refType, &ref, &stored.GrossAmount, &commissionRate,
			&stored.CommissionAmount, &stored.PayoutAmount); err != nil {
			log.Fatal("Failed to scan settlement:", err)
		}
		stored.CommissionRate = commissionRate
		checked++

		want, match, err := settlement.Verify(stored)
		if err != nil {
			mismatched++
			fmt.Printf("settlement %d (%s %s): invalid stored input: %v\n", id, refType, ref, err)
			continue
		}
		if !match {
			mismatched++
			fmt.Printf("settlement %d (%s %s): stored commission=%d payout=%d, expected commission=%d payout=%d\n",
				id, refType, ref, stored.CommissionAmount, stored.PayoutAmount, want.CommissionAmount, want.PayoutAmount)
		}
	}
	if err := rows.Err(); err != nil {
		log.Fatal("Failed to read settlements:", err)
	}

	fmt.Printf("Checked %d settlements, %d mismatched\n", checked, mismatched)
	if mismatched > 0 {
		os.Exit(1)
	}
}
