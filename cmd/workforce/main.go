/*
main.go - workforce CLI entry point

PURPOSE:
  One binary for serving and for offline runs of the workforce engine.

COMMANDS:
  serve      HTTP API, websocket telemetry, Prometheus metrics and the
             automatic tick scheduler, persisted to SQLite
  simulate   Run a scenario for N ticks in memory and print KPIs
  digest     Run a scenario twice and compare the final state digests
  scenarios  List the preset scenarios

CONFIGURATION:
  Flags, WORKFORCE_* environment variables and an optional --config file,
  resolved by the config package. Examples:

    workforce serve --addr :9090 --scheduler.enabled --scheduler.interval 500ms
    WORKFORCE_DB_PATH=:memory: workforce serve
    workforce simulate --scenario overtime-crunch --ticks 72 --every 12
    workforce simulate --scenario ./my-scenario.yaml --json
    workforce digest --scenario hiring-drive --ticks 240

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the tick scheduler (an in-flight tick finishes and commits)
  2. Disconnect websocket subscribers
  3. Stop accepting new connections, wait for active requests (30s)
  4. Flush telemetry files and close the database

SEE ALSO:
  - config/config.go: Keys and precedence
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
