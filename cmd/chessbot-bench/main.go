package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/pkg/profile"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/bench"
	"github.com/hailam/chessbot/internal/config"
	"github.com/hailam/chessbot/internal/engine"
)

var (
	configPath  = flag.String("config", "", "path to a JSON config file")
	depth       = flag.Int("depth", 0, "search depth (overrides bench.depth)")
	concurrency = flag.Int("j", -1, "positions searched at once (overrides bench.concurrency)")
	fenFile     = flag.String("fens", "", "file with one FEN per line (default: built-in positions)")
	asJSON      = flag.Bool("json", false, "print entries as JSON")
	cpuprofile  = flag.String("cpuprofile", "", "write a cpu profile into this directory")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	if *depth > 0 {
		cfg.Bench.Depth = min(*depth, config.MaxSearchDepth)
	}
	if *concurrency >= 0 {
		cfg.Bench.Concurrency = *concurrency
	}
	if err := config.SetupLogging(cfg.Log, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("could not set up logging")
	}

	if *cpuprofile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuprofile), profile.NoShutdownHook).Stop()
	}

	fens := bench.Positions
	if *fenFile != "" {
		fens, err = readFENs(*fenFile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not read positions")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	entries, err := bench.Run(ctx, fens, bench.Options{
		Rules:       cfg.Backend(),
		Engine:      cfg.EngineConfig(),
		Limits:      engine.SearchLimits{Depth: cfg.Bench.Depth},
		Concurrency: cfg.Bench.Concurrency,
	})
	if err != nil {
		log.Error().Err(err).Msg("bench failed")
		return
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			log.Error().Err(err).Msg("encode entries")
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tmove\tscore\tdepth\tnodes\ttime")
	for i, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%v\n", i+1, e.Move, e.Score, e.Depth, e.Nodes, e.Elapsed)
	}
	w.Flush()

	sum := bench.Summarize(entries)
	fmt.Printf("\n%d positions, %d nodes, %v search time, %d nps\n", sum.Positions, sum.Nodes, sum.Elapsed, sum.NPS())
}

func readFENs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fens = append(fens, line)
	}
	return fens, scanner.Err()
}
