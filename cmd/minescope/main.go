package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudflare/tableflip"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/minescope/minescope"
	"github.com/minescope/minescope/api"
	"github.com/minescope/minescope/config"
)

const version = "0.1.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "probe":
		runProbe(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: minescope probe [-mode auto|java|bedrock|double] [-timeout 5s] [-json] <address>")
	fmt.Fprintln(os.Stderr, "       minescope serve [-config minescope.yml] [-bind :8080]")
}

func runProbe(args []string) {
	flags := flag.NewFlagSet("probe", flag.ExitOnError)
	modeText := flags.String("mode", "auto", "probe mode: auto, java, bedrock or double")
	timeout := flags.Duration("timeout", minescope.DefaultTimeout, "give up on the probe after this long")
	asJSON := flags.Bool("json", false, "print the result as json")
	flags.Parse(args)

	if flags.NArg() != 1 {
		printUsage()
		os.Exit(2)
	}
	addr := flags.Arg(0)

	mode, err := minescope.ParseProbeMode(*modeText)
	if err != nil {
		log.Fatal().Err(err).Msg("bad probe mode")
	}

	log.Debug().Str("version", version).Msg("minescope")

	cfg := minescope.DefaultProberConfig()
	cfg.Timeout = *timeout
	prober := minescope.NewProber(cfg)

	ctx := context.Background()
	if mode == minescope.ModeDouble {
		results, err := prober.ProbeDouble(ctx, addr)
		if err != nil {
			log.Fatal().Err(err).Msg("probe failed")
		}
		printResults(results, *asJSON)
		return
	}

	result, err := prober.Probe(ctx, addr, mode)
	if err != nil {
		log.Fatal().Err(err).Msg("probe failed")
	}
	printResults([]*minescope.ProbeResult{result}, *asJSON)
}

func printResults(results []*minescope.ProbeResult, asJSON bool) {
	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if len(results) == 1 {
			encoder.Encode(results[0])
			return
		}
		encoder.Encode(results)
		return
	}
	for _, result := range results {
		printResult(result)
	}
}

func printResult(result *minescope.ProbeResult) {
	fmt.Printf("%s %s\n", result.Edition, result.Target.Addr())
	if result.Target.SRV {
		fmt.Println("  srv: yes")
	}
	fmt.Printf("  version: %s (protocol %d)\n", result.Version, result.Protocol)
	fmt.Printf("  players: %d/%d\n", result.OnlinePlayers, result.MaxPlayers)
	for _, player := range result.Sample {
		fmt.Printf("    %s\n", player.Name)
	}
	fmt.Printf("  motd: %s\n", result.MotdPlain())
	if result.Gamemode != "" {
		fmt.Printf("  gamemode: %s\n", result.Gamemode)
	}
	fmt.Printf("  latency: %dms\n", result.LatencyMillis)
}

func runServe(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := flags.String("config", "", "path to the config file")
	bind := flags.String("bind", "", "listen address, overrides the config")
	flags.Parse(args)

	cfg, err := config.ReadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cant read config")
	}
	if *bind != "" {
		cfg.Bind = *bind
	}
	if _, err := minescope.ParseProbeMode(cfg.Mode); err != nil {
		log.Fatal().Err(err).Msg("bad probe mode in config")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("version", version).Str("bind", cfg.Bind).Msg("starting minescope")

	upg, err := tableflip.New(tableflip.Options{
		PIDFile: cfg.PidFile,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cant prepare upgrades")
	}
	defer upg.Stop()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP)
		for range sig {
			if err := upg.Upgrade(); err != nil {
				log.Error().Err(err).Msg("upgrade failed")
			}
		}
	}()

	listener, err := upg.Listen("tcp", cfg.Bind)
	if err != nil {
		log.Fatal().Err(err).Msg("cant listen")
	}

	server := api.NewAPI(minescope.NewProber(cfg.ProberConfig()), cfg)
	go func() {
		if err := server.Serve(listener); err != nil {
			log.Error().Err(err).Msg("api stopped")
		}
	}()

	log.Info().Msg("ready")
	if err := upg.Ready(); err != nil {
		log.Fatal().Err(err).Msg("cant signal readiness")
	}
	<-upg.Exit()

	log.Info().Msg("shutting down")
	server.Close()
}
