package main

import (
	"fmt"
	"os"
)

const usage = `ticketflow - workflow action-execution engine

Usage:
  ticketflow serve               serve the MCP tools over stdio
  ticketflow run <file.json>     run {"context": ..., "actions": [...]} once and print the result
  ticketflow migrate             apply database migrations
  ticketflow install [flags]     write ~/.ticketflow/settings.json
  ticketflow version             print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		runServe(args)
	case "run":
		runRun(args)
	case "migrate":
		runMigrate(args)
	case "install":
		runInstall(args)
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}
