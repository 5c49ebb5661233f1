// Package main provides the apstab command-line tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/apstab/internal/cli"

	// Output types selectable with output_type.
	_ "github.com/leapstack-labs/apstab/pkg/sinks/csv"
	_ "github.com/leapstack-labs/apstab/pkg/sinks/duckdb"
	_ "github.com/leapstack-labs/apstab/pkg/sinks/memory"
	_ "github.com/leapstack-labs/apstab/pkg/sinks/postgres"
	_ "github.com/leapstack-labs/apstab/pkg/sinks/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
