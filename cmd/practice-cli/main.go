package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"practicelab/internal/cli/config"
	"practicelab/internal/cli/repl"
	"practicelab/internal/practice/fetcher"
	"practicelab/internal/practice/service"
	"practicelab/pkg/utils/logger"

	"github.com/chzyer/readline"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to ./practice.yaml when present)")
	question := flag.String("question", "", "Question file to load on start")
	fetchBase := flag.String("fetch", "", "Override content service base URL")
	flag.Parse()

	if err := run(*configPath, *question, *fetchBase); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(configPath, question, fetchBase string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	if fetchBase != "" {
		cfg.Fetch.BaseURL = fetchBase
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	var f fetcher.Fetcher
	if cfg.Fetch.BaseURL != "" {
		httpFetcher, err := fetcher.NewHTTP(cfg.Fetch)
		if err != nil {
			return fmt.Errorf("init fetcher failed: %w", err)
		}
		f = httpFetcher
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	manager, err := service.NewManager(cfg.Practice, f)
	if err != nil {
		return fmt.Errorf("init session manager failed: %w", err)
	}
	defer manager.Shutdown(context.Background())
	session, err := manager.Create(ctx)
	if err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "practice> ",
		HistoryFile:     cfg.HistoryFile,
		AutoComplete:    repl.Completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init terminal failed: %w", err)
	}
	defer rl.Close()

	sh := repl.New(session, rl.Stdout(), cfg.PrettyJSON)
	if question != "" {
		if err := sh.Exec(ctx, ".load "+strconv.Quote(question)); err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
	return sh.Run(ctx, rl)
}
