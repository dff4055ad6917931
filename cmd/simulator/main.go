// Command simulator runs a cycle-accurate multi-core cache-coherence
// simulation over recorded instruction traces and prints a statistics
// report, per spec.md §6.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/user-none/go-coherence"
	"github.com/user-none/go-coherence/internal/config"
	"github.com/user-none/go-coherence/internal/logging"
	"github.com/user-none/go-coherence/internal/report"
	"github.com/user-none/go-coherence/internal/trace"
)

func main() {
	app := cli.NewApp()
	app.Name = "simulator"
	app.Usage = "simulate a shared-bus, multi-core cache hierarchy over recorded traces"
	app.ArgsUsage = "<mesi|dragon> <trace.zip> <cache_size> <associativity> <block_size>"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "no-progress", Usage: "suppress the periodic progress line"},
		cli.BoolFlag{Name: "strict", Usage: "check simulation invariants every cycle, aborting on violation"},
		cli.BoolFlag{Name: "read-broadcast", Usage: "enable the MESI read-broadcast variant (MESI only)"},
		cli.BoolFlag{Name: "verbose", Usage: "emit debug-level logging"},
		cli.Int64Flag{Name: "seed", Value: 1, Usage: "PRNG seed for the per-cycle processor-order shuffle"},
		cli.StringFlag{Name: "event-log", Usage: "path to write a newline-delimited JSON event log"},
		cli.Uint64Flag{Name: "max-cycles", Value: 10_000_000, Usage: "abort if the run exceeds this many cycles (0 disables)"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "simulator:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 5 {
		return cli.NewExitError("expected exactly 5 positional arguments: protocol, trace path, cache size, associativity, block size", 1)
	}

	params := config.DefaultParams()
	params.Protocol = config.Protocol(c.Args().Get(0))
	params.TracePath = c.Args().Get(1)
	var err error
	if params.CacheSize, err = parsePositiveInt(c.Args().Get(2), "cache size"); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if params.Associativity, err = parsePositiveInt(c.Args().Get(3), "associativity"); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if params.BlockSize, err = parsePositiveInt(c.Args().Get(4), "block size"); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	params.ReadBroadcast = c.Bool("read-broadcast")
	params.Strict = c.Bool("strict")
	params.EventLogPath = c.String("event-log")
	params.NoProgress = c.Bool("no-progress")
	params.Seed = c.Int64("seed")

	if err := params.Validate(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	log := logging.New(os.Stderr, c.Bool("verbose"))

	perCore, err := trace.Load(params.TracePath)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	log.Info("trace loaded", map[string]any{"cores": len(perCore), "path": params.TracePath})

	sys, err := buildSystem(params, perCore)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	var sink *report.EventSink
	if params.EventLogPath != "" {
		sink = report.NewEventSink()
	}

	maxCycles := c.Uint64("max-cycles")
	stats, err := runWithProgress(sys, maxCycles, params.Strict, params.NoProgress, log, sink)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if err := report.Write(os.Stdout, string(params.Protocol), stats); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if sink != nil {
		f, err := os.Create(params.EventLogPath)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer f.Close()
		if err := sink.WriteJSONL(f); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}

	return nil
}

func buildSystem(params config.Params, perCore [][]coherence.Record) (*coherence.System, error) {
	layout := coherence.NewAddressLayout(params.CacheSize, params.Associativity, params.BlockSize)
	numLines := layout.NumSets() * layout.Associativity()

	cores := make([]*coherence.Core, len(perCore))
	for id, recs := range perCore {
		var protocol coherence.Protocol
		switch params.Protocol {
		case config.ProtocolDragon:
			protocol = coherence.NewDragon(id, numLines, params.BlockSize)
		default:
			protocol = coherence.NewMESI(id, numLines, params.BlockSize, params.ReadBroadcast)
		}
		cache := coherence.NewCache(id, layout, params.BlockSize, protocol)
		stream := coherence.NewSliceStream(recs)
		cores[id] = coherence.NewCore(id, cache, stream)
	}
	return coherence.NewSystem(cores, params.Seed), nil
}

// runWithProgress steps sys to completion, optionally printing a
// progress line every 100k cycles and recording bus events into sink.
func runWithProgress(sys *coherence.System, maxCycles uint64, strict, noProgress bool, log logging.Logger, sink *report.EventSink) (coherence.SystemStats, error) {
	const progressInterval = 100_000
	for {
		done := sys.Update()

		if sink != nil {
			if t := sys.Bus().ActiveTask(); t != nil {
				sink.Record(report.Event{
					Cycle:  sys.Clock(),
					CoreID: t.IssuerID,
					Action: t.Action.Kind.String(),
					Addr:   t.Action.Addr,
					Bytes:  t.Action.Bytes,
				})
			}
		}

		if strict {
			if err := sys.CheckInvariants(); err != nil {
				return coherence.SystemStats{}, err
			}
		}
		if done {
			return sys.Stats(), nil
		}
		if !noProgress && sys.Clock()%progressInterval == 0 {
			log.Info("progress", map[string]any{"cycle": sys.Clock()})
		}
		if maxCycles > 0 && sys.Clock() >= maxCycles {
			return coherence.SystemStats{}, fmt.Errorf("simulation exceeded %d cycles without terminating", maxCycles)
		}
	}
}

func parsePositiveInt(s, what string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", what, s)
	}
	return n, nil
}
