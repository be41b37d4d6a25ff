package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-query/internal/cli"
	"github.com/BuzzLyutic/todo-query/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override client config path (optional)")
	apiBase := flag.String("api", "", "API base URL (optional, overrides config)")
	interval := flag.Duration("interval", time.Second, "polling interval for watch and clock")
	ticks := flag.Int("n", 0, "stop watch/clock after n updates (0 = until interrupted)")
	verbose := flag.Bool("v", false, "log cache activity to stderr")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), cli.Usage+"\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "todoctl: %v\n", err)
		return 1
	}
	if *apiBase != "" {
		cfg.APIBase = *apiBase
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "todoctl: %v\n", err)
			return 1
		}
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = cli.Run(ctx, cli.Options{
		Config:   cfg,
		Args:     flag.Args(),
		Out:      os.Stdout,
		Logger:   logger,
		Interval: *interval,
		Ticks:    *ticks,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "todoctl: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			flag.Usage()
			return 2
		}
		return 1
	}
	return 0
}
