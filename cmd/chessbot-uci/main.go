package main

import (
	"flag"
	"os"

	"github.com/pkg/profile"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chessbot/internal/config"
	"github.com/hailam/chessbot/internal/uci"
)

var (
	configPath = flag.String("config", "", "path to a JSON config file")
	cpuprofile = flag.String("cpuprofile", "", "write a cpu profile into this directory")
	depth      = flag.Int("depth", 0, "override engine.max_depth")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	if *depth > 0 {
		cfg.Engine.MaxDepth = min(*depth, config.MaxSearchDepth)
	}
	// stdout belongs to the protocol.
	if err := config.SetupLogging(cfg.Log, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("could not set up logging")
	}

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(profilePath), profile.NoShutdownHook).Stop()
		log.Info().Str("dir", profilePath).Msg("CPU profiling enabled")
	}

	protocol := uci.New(cfg.EngineConfig(), cfg.Backend(), cfg.Engine.Positional, os.Stdin, os.Stdout)
	if err := protocol.Run(); err != nil {
		log.Error().Err(err).Msg("uci loop failed")
	}
}
