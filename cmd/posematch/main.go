/*
Package main is the entry point for the posematch CLI.

posematch selects animation poses by matching a character's trajectory
against pose databases, and provides tooling to build, inspect and
benchmark those databases.

Usage:

	posematch [command]

Available Commands:

	init        Create a default configuration file
	add         Register a pose database directory
	remove      Remove a database from the configuration
	list        List all registered pose databases
	generate    Write a synthetic locomotion database
	build       Build the search index of pose databases
	inspect     Show the layout of a pose database
	find        Find motions across pose databases
	simulate    Run the matcher against a scripted locomotion trajectory
	benchmark   Measure matcher tick latency against a frame budget
	verify      Verify configuration and databases
	trace       Export or prune recorded search traces
	version     Show version information

Examples:

	# Generate a database and register it
	posematch generate ./dbs/locomotion --add

	# Run the matcher and record every tick
	posematch simulate --trace
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/khanglvm/posematch/internal/cli"
	"github.com/khanglvm/posematch/internal/version"
)

// Version information (set via ldflags during build)
var (
	buildVersion = "dev"
	commit       = "none"
	date         = "unknown"
)

func main() {
	version.Version = buildVersion
	version.Commit = commit
	version.Date = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
