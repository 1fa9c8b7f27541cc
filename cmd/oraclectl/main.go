package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "decode":
		return runDecode(args[1:], stdout, stderr)
	case "snapshot":
		return runSnapshot(args[1:], stdout, stderr)
	case "simulate":
		return runSimulate(args[1:], stdout, stderr)
	case "keygen":
		return runKeygen(args[1:], stdout, stderr)
	case "bootstrap":
		return runBootstrap(args[1:], stdout, stderr)
	case "feeds":
		return runFeeds(args[1:], stdout, stderr)
	case "deactivate-feed":
		return runDeactivateFeed(args[1:], stdout, stderr)
	case "info":
		return runInfo(args[1:], stdout, stderr)
	case "quote":
		return runQuote(args[1:], stdout, stderr)
	case "quotes":
		return runQuotes(args[1:], stdout, stderr)
	case "consume":
		return runConsume(args[1:], stdout, stderr)
	case "cpi":
		return runCpi(args[1:], stdout, stderr)
	case "pause":
		return runPause(args[1:], stdout, stderr, true)
	case "unpause":
		return runPause(args[1:], stdout, stderr, false)
	case "propose-authority":
		return runProposeAuthority(args[1:], stdout, stderr)
	case "accept-authority":
		return runAcceptAuthority(args[1:], stdout, stderr)
	case "journal":
		return runJournal(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: oraclectl <command> [flags]",
		"",
		"Offline:",
		"  decode            decode a feed snapshot file",
		"  snapshot          write a snapshot fixture",
		"  simulate          preview a quote from explicit inputs",
		"  keygen            derive an account or instrument address",
		"",
		"State (require --config):",
		"  bootstrap         create the registry, register feeds and initialise instruments",
		"  feeds             list registry entries",
		"  deactivate-feed   soft-deactivate a feed symbol",
		"  info              show an instrument's configuration",
		"  quote             issue a mint or redeem quote",
		"  quotes            list outstanding quotes",
		"  consume           consume a quote",
		"  cpi               update an instrument's CPI multiplier",
		"  pause | unpause   toggle an instrument",
		"  propose-authority | accept-authority",
		"  journal           show recent journaled events",
	}, "\n")
}

func writeJSON(stdout, stderr io.Writer, value interface{}) int {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "failed to encode output: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(encoded))
	return 0
}
