package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vampirenirmal/lessonflow/internal/agent"
	"github.com/vampirenirmal/lessonflow/internal/chat"
	"github.com/vampirenirmal/lessonflow/internal/config"
	"github.com/vampirenirmal/lessonflow/internal/generate"
	"github.com/vampirenirmal/lessonflow/internal/lesson"
	"github.com/vampirenirmal/lessonflow/internal/storage"
)

func main() {
	sessionID := flag.String("session", "", "session ID to resume (a new one is minted when empty)")
	listSessions := flag.Bool("list", false, "list saved sessions and exit")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	store := storage.NewSessionStore(storage.NewFileSystem(cfg.Paths.SessionDir), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listSessions {
		if err := printSessions(ctx, store); err != nil {
			fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runChat(ctx, cfg, store, *sessionID, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printSessions(ctx context.Context, store *storage.SessionStore) error {
	infos, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%s  (saved %s)\n", info.SessionID, info.SavedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runChat(ctx context.Context, cfg *config.Config, store *storage.SessionStore, sessionID string, logger *slog.Logger) error {
	client := agent.NewClient(cfg.AI.APIKey,
		agent.WithAPIConfig(cfg.AI.BaseURL, cfg.AI.Model),
		agent.WithTimeout(time.Duration(cfg.AI.Timeout)*time.Second),
		agent.WithRetry(cfg.Limits.MaxRetries),
		agent.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
		agent.WithLogger(logger))

	classifier := agent.NewCachedClassifier(client, agent.NewClassificationCache(5*time.Minute))

	engine := generate.NewEngine(client,
		generate.WithWorkers(cfg.Limits.MaxConcurrentGenerators),
		generate.WithItemTimeout(cfg.Limits.ItemTimeout),
		generate.WithLogger(logger))

	validator := chat.NewValidator(client, logger)
	chain := chat.DefaultChain(client, engine, validator, streamCallbacks(), logger)

	opts := []chat.Option{
		chat.WithCompressor(chat.NewCompressor(client, cfg.Limits.MaxContextTokens, cfg.Limits.KeepTailSegments, logger)),
		chat.WithObserver(chat.NewObserver(client, logger)),
		chat.WithGenerationCallbacks(streamCallbacks()),
		chat.WithMaxClarifyTurns(cfg.Limits.MaxClarifyTurns),
		chat.WithLogger(logger),
	}
	if sessionID != "" {
		opts = append(opts, chat.WithSessionID(sessionID))
	}
	orch := chat.New(classifier, chain, engine, opts...)

	state := chat.NewState()
	if sessionID != "" && store.Exists(ctx, sessionID) {
		savedAt, err := store.Load(ctx, sessionID, &state)
		if err != nil {
			return fmt.Errorf("resuming session %s: %w", sessionID, err)
		}
		fmt.Printf("Resumed session %s (last saved %s).\n", sessionID, savedAt.Local().Format("2006-01-02 15:04"))
	}

	fmt.Println("LessonFlow - tell me what lesson to build. Type /help for commands, /quit to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			break
		}

		message, action := parseInput(input)

		resp, err := orch.Handle(ctx, message, action, state)
		if err != nil {
			if errors.Is(err, chat.ErrUnknownAction) {
				fmt.Printf("Unknown command %q. Type /help to see what's available.\n", action)
				continue
			}
			return err
		}

		fmt.Println()
		fmt.Println(resp.Message)
		for _, a := range resp.Actions {
			fmt.Printf("  /%s - %s\n", a.ID, a.Label)
		}
		fmt.Println()

		state = resp.State
		if err := store.Save(ctx, orch.SessionID(), state); err != nil {
			logger.Warn("could not save session", "session_id", orch.SessionID(), "error", err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	fmt.Printf("Bye! Resume this conversation with: lessonflow -session %s\n", orch.SessionID())
	return scanner.Err()
}

// streamCallbacks prints per-slide progress while a batch runs, so the user
// sees slides land before the batch settles.
func streamCallbacks() generate.Callbacks {
	return generate.Callbacks{
		OnItemReady: func(item lesson.GeneratedItem) {
			fmt.Printf("  + %s\n", item.Title)
		},
		OnError: func(index int, err error) {
			fmt.Printf("  ! slide %d needs another try\n", index)
		},
	}
}

// parseInput splits a line into a free-text message or a slash action.
func parseInput(input string) (message, action string) {
	if !strings.HasPrefix(input, "/") {
		return input, ""
	}
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return input, ""
	}
	switch fields[0] {
	case "help":
		return "", chat.ActionShowHelp
	default:
		return strings.Join(fields[1:], " "), fields[0]
	}
}
