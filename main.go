package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dorskfr/bitvavo/api"
	"github.com/dorskfr/bitvavo/internal/config"
	"github.com/dorskfr/bitvavo/internal/utils"
	"github.com/rs/zerolog/log"
)

var errUsage = errors.New("invalid usage")

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if err := run(*configPath, *logLevel, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func run(configPath, logLevel string, args []string) error {
	if err := utils.InitLogging(logLevel); err != nil {
		return fmt.Errorf("error initialising logging: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if logLevel == "" {
		if err := utils.InitLogging(cfg.Logging.Level); err != nil {
			return fmt.Errorf("error initialising logging: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go utils.WaitForShutdownSignal(ctx, cancel)

	a := newApp(cfg, os.Stdout)
	return a.execute(ctx, args)
}

type app struct {
	cfg    *config.Config
	client *api.Client
	out    io.Writer
}

func newApp(cfg *config.Config, out io.Writer) *app {
	return &app{
		cfg:    cfg,
		client: api.NewClient(cfg.ClientOptions()...),
		out:    out,
	}
}

// execute runs one command and prints its result. The API secret is wiped
// before it returns, whatever the outcome.
func (a *app) execute(ctx context.Context, args []string) error {
	defer a.client.Signer().Wipe()

	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		log.Error().Str("command", args[0]).Msg("Unknown command")
		return errUsage
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("missing arguments, usage: %s %s", args[0], cmd.args)
	}

	result, err := cmd.run(ctx, a, args[1:])
	if err != nil {
		return fmt.Errorf("error running %s: %w", args[0], err)
	}
	if result == nil {
		return nil
	}
	if err := a.print(result); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage: bitvavo [-config path] [-log-level level] <command> [args]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].args)
	}
	fmt.Fprintf(w, "\nFlags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(w, "\nCredentials are read from %s and %s.\n", config.EnvAPIKey, config.EnvAPISecret)
}
