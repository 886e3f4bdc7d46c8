package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agrigpt/chatclient/internal/api"
	"github.com/agrigpt/chatclient/internal/audio"
	chatclient "github.com/agrigpt/chatclient/internal/chat"
	"github.com/agrigpt/chatclient/internal/config"
	"github.com/agrigpt/chatclient/internal/devserver"
	"github.com/agrigpt/chatclient/internal/model/chat"
	"github.com/agrigpt/chatclient/internal/speech"
	"github.com/agrigpt/chatclient/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := godotenv.Load(); err != nil {
		logger.Warn("failed to load .env file, continuing with system environment", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	state, err := store.Open(cfg.StatePath)
	if err != nil {
		logger.Fatal("failed to open state store", zap.Error(err), zap.String("path", cfg.StatePath))
	}
	defer state.Close()

	if cfg.DevServer.Enabled {
		svc := devserver.NewService()
		go startDevServer(ctx, cfg.DevServer, devserver.NewRouter(svc), logger)
	}

	backend := api.New(cfg.API.BaseURL, state.Token)

	logger.Info("audio capture configured",
		zap.Int("sampleRate", cfg.Audio.SampleRate),
		zap.Int("channels", cfg.Audio.Channels),
	)
	device := &audio.WAVFileDevice{}
	recorder := audio.NewRecorder(device, audio.WAVDecoder{}, logger)

	synth := &speech.ConsoleSynthesizer{Out: os.Stdout}
	player := speech.NewPlayer(synth, func(msg string) {
		fmt.Println("⚠️ " + msg)
	}, logger)

	reconciler := chatclient.NewReconciler(backend, state, cfg.Trial.Limit, logger)
	client := chatclient.NewClient(reconciler, recorder, player, logger)
	defer client.Close()

	client.Initialize(ctx)
	runShell(ctx, client, state, device)
}

func startDevServer(ctx context.Context, cfg config.DevServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("dev server listening", zap.String("addr", cfg.Addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dev server error", zap.Error(err))
		}
	}
}

func runShell(ctx context.Context, client *chatclient.Client, state *store.Store, device *audio.WAVFileDevice) {
	fmt.Println("AgriGPT chat. Type a message, or /help for commands.")
	printTranscript(client.Messages(), 0)
	rendered := len(client.Messages())

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		var line string
		var open bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, open = <-lines:
			if !open {
				return
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, client, state, device, line); quit {
				return
			}
			// Session-affecting commands replace the transcript wholesale.
			switch strings.Fields(line)[0] {
			case "/new", "/open", "/delete", "/login", "/logout":
				rendered = 0
			}
		} else if err := client.SendText(ctx, line); err != nil &&
			!errors.Is(err, chatclient.ErrTrialExpired) {
			fmt.Println("⚠️ " + err.Error())
		}

		rendered = printTranscript(client.Messages(), rendered)
	}
}

func runCommand(ctx context.Context, client *chatclient.Client, state *store.Store, device *audio.WAVFileDevice, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		fmt.Println(`Commands:
  /new                start a new conversation
  /chats              list your chat sessions
  /open <n|id>        open a session
  /delete <n|id>      delete a session
  /say <n|last>       narrate a bot message
  /voice <file.wav>   send a voice message from a WAV file
  /login <token>      store a bearer token
  /logout             clear all local state
  /trial              show trial usage
  /quit               exit`)

	case "/new":
		client.NewSession()

	case "/chats":
		sessions := client.Sessions()
		if len(sessions) == 0 {
			fmt.Println("No chat sessions.")
		}
		for i, s := range sessions {
			fmt.Printf("%2d. %s (%s)\n", i+1, s.Title, s.UpdatedAt.Local().Format("Jan 2 15:04"))
		}

	case "/open":
		if id, ok := resolveSession(client, args); ok {
			if err := client.LoadSession(ctx, id); err != nil {
				fmt.Println("⚠️ " + err.Error())
			}
		}

	case "/delete":
		if id, ok := resolveSession(client, args); ok {
			if err := client.DeleteSession(ctx, id); err != nil {
				fmt.Println("⚠️ An error occurred while deleting the chat.")
			}
		}

	case "/say":
		narrate(client, args)

	case "/voice":
		if len(args) != 1 {
			fmt.Println("Usage: /voice <file.wav>")
			break
		}
		device.Path = args[0]
		if err := client.StartRecording(ctx); err != nil {
			if !errors.Is(err, chatclient.ErrLoginRequired) {
				fmt.Println("⚠️ Unable to access microphone. Please check permissions.")
			}
			break
		}
		if err := client.StopRecordingAndSend(ctx); err != nil {
			zap.L().Error("voice send failed", zap.Error(err))
		}

	case "/login":
		if len(args) != 1 {
			fmt.Println("Usage: /login <token>")
			break
		}
		if err := state.Set(store.KeyToken, args[0]); err != nil {
			fmt.Println("⚠️ " + err.Error())
			break
		}
		client.Initialize(ctx)
		fmt.Println("Logged in.")

	case "/logout":
		if err := state.Clear(); err != nil {
			fmt.Println("⚠️ " + err.Error())
			break
		}
		client.Initialize(ctx)
		fmt.Println("Logged out, local state cleared.")

	case "/trial":
		used, limit := client.TrialStatus()
		fmt.Printf("🆓 Free trial: %d/%d messages used\n", used, limit)

	case "/quit", "/exit":
		return true

	default:
		fmt.Println("Unknown command. Type /help for commands.")
	}
	return false
}

func resolveSession(client *chatclient.Client, args []string) (string, bool) {
	if len(args) != 1 {
		fmt.Println("Usage: provide a session number from /chats or a session id")
		return "", false
	}

	sessions := client.Sessions()
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(sessions) {
			fmt.Println("No such session number; run /chats first.")
			return "", false
		}
		return sessions[n-1].ID, true
	}
	return args[0], true
}

func narrate(client *chatclient.Client, args []string) {
	messages := client.Messages()
	if len(args) != 1 {
		fmt.Println("Usage: /say <n|last>")
		return
	}

	if args[0] == "last" {
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Sender == chat.SenderBot {
				client.ToggleNarration(messages[i].ID)
				return
			}
		}
		fmt.Println("No bot message to narrate.")
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(messages) {
		fmt.Println("No such message number.")
		return
	}
	client.ToggleNarration(messages[n-1].ID)
}

func printTranscript(messages []chat.Message, from int) int {
	for _, m := range messages[min(from, len(messages)):] {
		prefix := "🤖"
		if m.Sender == chat.SenderUser {
			prefix = "🧑"
		}
		fmt.Printf("%s %s\n", prefix, m.Text)
	}
	return len(messages)
}
