package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fxoracle/crypto"
	"fxoracle/indexer"
	"fxoracle/native/oracle"
)

func parseAddress(flagName, raw string, prefix crypto.AddressPrefix) (crypto.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return crypto.Address{}, fmt.Errorf("--%s is required", flagName)
	}
	addr, err := crypto.DecodeAddressWithPrefix(strings.TrimSpace(raw), prefix)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("--%s: %w", flagName, err)
	}
	return addr, nil
}

func parseDirection(raw string) (oracle.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mint":
		return oracle.DirectionMint, nil
	case "redeem":
		return oracle.DirectionRedeem, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", raw)
	}
}

func loadSnapshot(path string, feed crypto.FeedAddress) (oracle.FeedSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return oracle.FeedSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return oracle.FeedSnapshot{Address: feed, Data: data}, nil
}

type bootstrapReport struct {
	Registry    string   `json:"registry"`
	Feeds       []string `json:"feeds"`
	Instruments []string `json:"instruments"`
}

func runBootstrap(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("bootstrap", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		authority, err := parseAddress("registry.authority", rt.cfg.Registry.Authority, crypto.AccountPrefix)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		report := bootstrapReport{Registry: "created"}
		if err := rt.engine.InitializeRegistry(ctx, authority); err != nil {
			if !errors.Is(err, oracle.ErrRegistryExists) {
				return reportError(stderr, "initialize registry", err)
			}
			report.Registry = "existing"
		}
		for _, feed := range rt.cfg.Feeds {
			ft, _ := feed.FeedType()
			addr, _ := feed.FeedAddress()
			snapshot, err := loadSnapshot(feed.SnapshotFile, addr)
			if err != nil {
				fmt.Fprintf(stderr, "Error: feed %s: %v\n", feed.Symbol, err)
				return 1
			}
			_, err = rt.engine.RegisterFeed(ctx, authority, oracle.RegisterFeedParams{
				Symbol:        feed.Symbol,
				FeedType:      ft,
				BaseCurrency:  feed.BaseCurrency,
				QuoteCurrency: feed.QuoteCurrency,
				Decimals:      feed.Decimals,
			}, snapshot)
			switch {
			case err == nil:
				report.Feeds = append(report.Feeds, feed.Symbol+": registered")
			case errors.Is(err, oracle.ErrFeedAlreadyRegistered):
				report.Feeds = append(report.Feeds, feed.Symbol+": existing")
			default:
				return reportError(stderr, "register feed "+feed.Symbol, err)
			}
		}
		for _, inst := range rt.cfg.Instruments {
			instrument, _ := crypto.DecodeAddressWithPrefix(inst.Instrument, crypto.InstrumentPrefix)
			caller, _ := crypto.DecodeAddressWithPrefix(inst.Authority, crypto.AccountPrefix)
			_, err := rt.engine.InitializeOracle(ctx, caller, instrument, inst.Params())
			switch {
			case err == nil:
				report.Instruments = append(report.Instruments, inst.Instrument+": initialized")
			case errors.Is(err, oracle.ErrOracleExists):
				report.Instruments = append(report.Instruments, inst.Instrument+": existing")
			default:
				return reportError(stderr, "initialize "+inst.Instrument, err)
			}
		}
		return writeJSON(stdout, stderr, report)
	})
}

func runFeeds(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("feeds", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		entries, err := rt.engine.ListFeeds(ctx)
		if err != nil {
			return reportError(stderr, "list feeds", err)
		}
		views := make([]feedView, 0, len(entries))
		for _, entry := range entries {
			views = append(views, newFeedView(entry))
		}
		return writeJSON(stdout, stderr, views)
	})
}

func runDeactivateFeed(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("deactivate-feed", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	callerFlag := fs.String("caller", "", "registry authority address")
	symbol := fs.String("symbol", "", "feed symbol")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	caller, err := parseAddress("caller", *callerFlag, crypto.AccountPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		if err := rt.engine.DeactivateFeed(ctx, caller, *symbol); err != nil {
			return reportError(stderr, "deactivate feed", err)
		}
		fmt.Fprintf(stdout, "feed %s deactivated\n", *symbol)
		return 0
	})
}

func runInfo(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("info", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	instrumentFlag := fs.String("instrument", "", "instrument address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	instrument, err := parseAddress("instrument", *instrumentFlag, crypto.InstrumentPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		cfg, err := rt.engine.OracleInfo(ctx, instrument)
		if err != nil {
			return reportError(stderr, "oracle info", err)
		}
		return writeJSON(stdout, stderr, newConfigView(cfg))
	})
}

func runQuote(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("quote", stderr)
	var (
		configPath, instrumentFlag, requesterFlag, direction, snapshotPath string
		amount, minOutput, nonce                                           uint64
	)
	fs.StringVar(&configPath, "config", "", "path to the oracle config")
	fs.StringVar(&instrumentFlag, "instrument", "", "instrument address")
	fs.StringVar(&requesterFlag, "requester", "", "requester address")
	fs.StringVar(&direction, "direction", "mint", "mint or redeem")
	fs.StringVar(&snapshotPath, "snapshot", "", "path to the current feed snapshot")
	fs.Uint64Var(&amount, "amount", 0, "input amount (fiat cents for mint, token units for redeem)")
	fs.Uint64Var(&minOutput, "min-output", 0, "minimum acceptable output")
	fs.Uint64Var(&nonce, "nonce", 0, "requester-chosen nonce")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	requester, instrument, ok := addressPair("requester", requesterFlag, "instrument", instrumentFlag, stderr)
	if !ok {
		return 1
	}
	dir, err := parseDirection(direction)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if snapshotPath == "" {
		fmt.Fprintln(stderr, "Error: --snapshot is required")
		return 1
	}
	return withRuntime(configPath, stderr, func(ctx context.Context, rt *runtime) int {
		cfg, err := rt.engine.OracleInfo(ctx, instrument)
		if err != nil {
			return reportError(stderr, "oracle info", err)
		}
		entry, err := rt.engine.FindFeed(ctx, cfg.FeedSymbol)
		if err != nil {
			return reportError(stderr, "find feed", err)
		}
		snapshot, err := loadSnapshot(snapshotPath, entry.Feed)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		req := oracle.QuoteRequest{InputAmount: amount, MinOutput: minOutput, Nonce: nonce}
		var res *oracle.QuoteResult
		if dir == oracle.DirectionMint {
			res, err = rt.engine.GetMintQuote(ctx, requester, instrument, req, snapshot)
		} else {
			res, err = rt.engine.GetRedeemQuote(ctx, requester, instrument, req, snapshot)
		}
		if err != nil {
			return reportError(stderr, "quote", err)
		}
		return writeJSON(stdout, stderr, newQuoteView(res))
	})
}

func runQuotes(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("quotes", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	instrumentFlag := fs.String("instrument", "", "only list quotes for this instrument")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var instrument crypto.Address
	if strings.TrimSpace(*instrumentFlag) != "" {
		parsed, err := parseAddress("instrument", *instrumentFlag, crypto.InstrumentPrefix)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		instrument = parsed
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		quotes, err := rt.engine.ListQuotes(ctx, instrument)
		if err != nil {
			return reportError(stderr, "list quotes", err)
		}
		now := engineNow().Unix()
		views := make([]pendingQuoteView, 0, len(quotes))
		for _, q := range quotes {
			views = append(views, newPendingQuoteView(q, now))
		}
		return writeJSON(stdout, stderr, views)
	})
}

func runConsume(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("consume", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	requesterFlag := fs.String("requester", "", "requester address")
	refFlag := fs.String("ref", "", "quote reference (hex)")
	direction := fs.String("direction", "mint", "mint or redeem")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	requester, err := parseAddress("requester", *requesterFlag, crypto.AccountPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	ref, err := oracle.ParseQuoteRef(*refFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --ref: %v\n", err)
		return 1
	}
	dir, err := parseDirection(*direction)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		var settlement *oracle.Settlement
		if dir == oracle.DirectionMint {
			settlement, err = rt.engine.MintWithOracle(ctx, requester, ref)
		} else {
			settlement, err = rt.engine.RedeemWithOracle(ctx, requester, ref)
		}
		if err != nil {
			return reportError(stderr, "consume", err)
		}
		return writeJSON(stdout, stderr, newSettlementView(settlement))
	})
}

func runCpi(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("cpi", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	callerFlag := fs.String("caller", "", "instrument authority")
	instrumentFlag := fs.String("instrument", "", "instrument address")
	multiplier := fs.Uint64("multiplier", 0, "new CPI multiplier scaled by 1e6")
	month := fs.String("month", "", "reference month, e.g. 2026-09")
	source := fs.String("source", "", "data source label")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	caller, instrument, ok := callerAndInstrument(*callerFlag, *instrumentFlag, stderr)
	if !ok {
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		update := oracle.CpiUpdate{NewMultiplier: *multiplier, ReferenceMonth: *month, DataSource: *source}
		if err := rt.engine.UpdateCpiMultiplier(ctx, caller, instrument, update); err != nil {
			return reportError(stderr, "update cpi", err)
		}
		fmt.Fprintf(stdout, "cpi multiplier for %s set to %d\n", instrument, *multiplier)
		return 0
	})
}

func runPause(args []string, stdout, stderr io.Writer, pause bool) int {
	name := "unpause"
	if pause {
		name = "pause"
	}
	fs := newFlagSet(name, stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	callerFlag := fs.String("caller", "", "instrument authority")
	instrumentFlag := fs.String("instrument", "", "instrument address")
	reason := fs.String("reason", "", "pause reason")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	caller, instrument, ok := callerAndInstrument(*callerFlag, *instrumentFlag, stderr)
	if !ok {
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		var err error
		if pause {
			err = rt.engine.Pause(ctx, caller, instrument, *reason)
		} else {
			err = rt.engine.Unpause(ctx, caller, instrument)
		}
		if err != nil {
			return reportError(stderr, name, err)
		}
		fmt.Fprintf(stdout, "%s: %s ok\n", instrument, name)
		return 0
	})
}

func runProposeAuthority(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("propose-authority", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	callerFlag := fs.String("caller", "", "current authority")
	instrumentFlag := fs.String("instrument", "", "instrument address")
	proposedFlag := fs.String("proposed", "", "proposed authority")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	caller, instrument, ok := callerAndInstrument(*callerFlag, *instrumentFlag, stderr)
	if !ok {
		return 1
	}
	proposed, err := parseAddress("proposed", *proposedFlag, crypto.AccountPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		if err := rt.engine.ProposeAuthorityTransfer(ctx, caller, instrument, proposed); err != nil {
			return reportError(stderr, "propose authority", err)
		}
		fmt.Fprintf(stdout, "proposed %s as authority of %s\n", proposed, instrument)
		return 0
	})
}

func runAcceptAuthority(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("accept-authority", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	callerFlag := fs.String("caller", "", "proposed authority")
	instrumentFlag := fs.String("instrument", "", "instrument address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	caller, instrument, ok := callerAndInstrument(*callerFlag, *instrumentFlag, stderr)
	if !ok {
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		if err := rt.engine.AcceptAuthorityTransfer(ctx, caller, instrument); err != nil {
			return reportError(stderr, "accept authority", err)
		}
		fmt.Fprintf(stdout, "%s is now authority of %s\n", caller, instrument)
		return 0
	})
}

func callerAndInstrument(callerRaw, instrumentRaw string, stderr io.Writer) (crypto.Address, crypto.Address, bool) {
	return addressPair("caller", callerRaw, "instrument", instrumentRaw, stderr)
}

// addressPair parses an account flag followed by an instrument flag.
func addressPair(accountName, accountRaw, instrumentName, instrumentRaw string, stderr io.Writer) (crypto.Address, crypto.Address, bool) {
	first, err := parseAddress(accountName, accountRaw, crypto.AccountPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return crypto.Address{}, crypto.Address{}, false
	}
	second, err := parseAddress(instrumentName, instrumentRaw, crypto.InstrumentPrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return crypto.Address{}, crypto.Address{}, false
	}
	return first, second, true
}

func runJournal(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("journal", stderr)
	configPath := fs.String("config", "", "path to the oracle config")
	limit := fs.Int("limit", 20, "maximum number of events")
	instrument := fs.String("instrument", "", "filter by instrument")
	quote := fs.String("quote", "", "show the lifecycle of one quote")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return withRuntime(*configPath, stderr, func(ctx context.Context, rt *runtime) int {
		var (
			records []indexer.EventRecord
			err     error
		)
		switch {
		case strings.TrimSpace(*quote) != "":
			records, err = rt.journal.ByQuote(ctx, *quote)
		case strings.TrimSpace(*instrument) != "":
			records, err = rt.journal.ByInstrument(ctx, *instrument, *limit)
		default:
			records, err = rt.journal.Recent(ctx, *limit)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: query journal: %v\n", err)
			return 1
		}
		views := make([]journalView, 0, len(records))
		for _, rec := range records {
			views = append(views, newJournalView(rec))
		}
		return writeJSON(stdout, stderr, views)
	})
}
