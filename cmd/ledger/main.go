/*
main.go - Application entry point

PURPOSE:
  The ledger CLI. Runs the HTTP server with the mandate ticker, and offers
  one-shot maintenance commands against the same SQLite store.

COMMANDS:
  serve            HTTP API + mandate scheduler
  export           Write a snapshot to --out (default stdout)
  import           Replace all data with the snapshot in --in
  accounts         Print balances
  mandates due     List mandates due on --date (default today)
  mandates run     Execute everything due on --date

CONFIGURATION:
  --config ledger.yaml, LEDGER_* environment variables, then flags.
  Flags win. See config/config.go for keys and defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the mandate scheduler
  2. Stop accepting new connections, wait for active requests (30s)
  3. Drain queued persistence writes
  4. Close database connection

EXAMPLES:
  # Run with file database
  ledger serve --db ./data/ledger.db

  # Back up, then restore
  ledger export --out backup.json
  ledger import --in backup.json

  # What would the scheduler do on the 5th?
  ledger mandates due --date 2025-03-05

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
