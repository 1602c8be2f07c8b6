// ABOUTME: Entry point for the house-notify terminal client
// ABOUTME: Resolves credentials, wires storage, REST and transport, then runs the command shell

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/house-notify/internal/api"
	"github.com/2389/house-notify/internal/config"
	"github.com/2389/house-notify/internal/credential"
	"github.com/2389/house-notify/internal/notify"
	"github.com/2389/house-notify/internal/seen"
	"github.com/2389/house-notify/internal/store"
	"github.com/2389/house-notify/internal/transport"
)

// version is set at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: house-notify <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  run                    Connect and follow notifications")
		fmt.Println("  login [--token TOKEN]  Verify a session token and store it in the keyring")
		fmt.Println("  logout                 Remove the stored token")
		fmt.Println("  whoami                 Show the authenticated user")
		fmt.Println("  version                Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = runClient(ctx)
	case "login":
		err = runLogin(ctx, os.Args[2:])
	case "logout":
		err = runLogout()
	case "whoami":
		err = runWhoami(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openCredentials(logger *slog.Logger) *credential.Store {
	dir := credential.DefaultDir()
	ring, err := credential.OpenKeyring(dir)
	if err != nil {
		logger.Warn("keyring unavailable, using environment and token file only", "error", err)
		ring = nil
	}
	return credential.NewStore(ring, filepath.Join(dir, "token"))
}

// authenticate resolves the stored token and fetches the user it belongs to.
func authenticate(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, *api.Client, *api.UserProfile, error) {
	token, source, err := openCredentials(logger).Resolve()
	if errors.Is(err, credential.ErrNoToken) {
		return "", nil, nil, fmt.Errorf("not logged in: run 'house-notify login' or set %s", credential.EnvToken)
	}
	if err != nil {
		return "", nil, nil, err
	}
	logger.Debug("token resolved", "source", source)

	client := api.NewClient(cfg.Server.APIBaseURL, token,
		api.WithPageSize(cfg.Notifications.PageSize),
		api.WithLogger(logger))

	me, err := client.Me(ctx)
	if api.IsUnauthorized(err) {
		return "", nil, nil, fmt.Errorf("token rejected by server: run 'house-notify login' again")
	}
	if err != nil {
		return "", nil, nil, fmt.Errorf("fetching profile: %w", err)
	}
	return token, client, me, nil
}

func runClient(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	token, client, me, err := authenticate(ctx, cfg, logger)
	if err != nil {
		return err
	}

	kv := openStorageOrMemory(ctx, cfg.Storage, me.ID.String(), logger)
	if kv != nil {
		defer kv.Close()
	}
	markers := seen.New(ctx, kv, logger)

	dialer, host, err := newDialer(cfg)
	if err != nil {
		return err
	}

	coord := notify.New(notify.Options{
		Contacts: client,
		Tickets:  client,
		NewTransport: func(cb transport.Callbacks) notify.Transport {
			return transport.NewSession(transport.Options{
				Dialer:            dialer,
				Host:              host,
				ReconnectDelay:    cfg.Transport.ReconnectDelay,
				HeartbeatIncoming: cfg.Transport.HeartbeatIncoming,
				HeartbeatOutgoing: cfg.Transport.HeartbeatOutgoing,
				Logger:            logger,
				Callbacks:         cb,
			})
		},
		Seen:              markers,
		ToastTimeout:      cfg.Notifications.ToastTimeout,
		AdminToastTimeout: cfg.Notifications.AdminToastTimeout,
		CatchupWindow:     cfg.Notifications.CatchupDedupeWindow,
		Logger:            logger,
	})
	defer coord.Close()

	sh := newShell(coord, os.Stdout)
	go sh.watch(ctx)

	identity := notify.Identity{Token: token, UserID: me.ID.String(), Role: me.Role, Name: me.DisplayName()}
	if err := coord.Bootstrap(ctx, identity); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	color.New(color.FgCyan).Printf("house-notify %s: signed in as %s (%s)\n", version, identity.Name, identity.Role)
	sh.printConversations()
	fmt.Println("type /help for commands")

	return sh.run(ctx, os.Stdin)
}

// openStorage returns the KV backend for seen markers. The memory backend
// returns a nil KV, which keeps markers for the process lifetime only.
func openStorage(ctx context.Context, cfg config.StorageConfig, userID string) (store.KV, error) {
	switch cfg.Backend {
	case "memory":
		return nil, nil
	case "redis":
		kv, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix + userID + ":",
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return kv, nil
	default:
		kv, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return kv, nil
	}
}

// openStorageOrMemory is openStorage, except that a backend that cannot be
// opened degrades to memory-only markers instead of stopping the client.
func openStorageOrMemory(ctx context.Context, cfg config.StorageConfig, userID string, logger *slog.Logger) store.KV {
	kv, err := openStorage(ctx, cfg, userID)
	if err != nil {
		logger.Warn("seen markers will not persist", "backend", cfg.Backend, "error", err)
		return nil
	}
	return kv
}

// newDialer builds the broker dialer and the STOMP virtual host for cfg.
func newDialer(cfg *config.Config) (transport.Dialer, string, error) {
	mode := transport.Mode(cfg.Transport.Mode)

	base := cfg.Server.WSBaseURL
	host := ""
	if mode == transport.ModeTCP {
		base = cfg.Transport.TCPAddr
		if h, _, err := net.SplitHostPort(base); err == nil {
			host = h
		}
	} else if u, err := url.Parse(base); err == nil {
		host = u.Hostname()
	}

	d, err := transport.NewDialer(mode, base, cfg.Transport.DialTimeout)
	if err != nil {
		return nil, "", fmt.Errorf("creating dialer: %w", err)
	}
	return d, host, nil
}

func runLogin(ctx context.Context, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	var token string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--token="):
			token = strings.TrimPrefix(arg, "--token=")
		case arg == "--token":
			if i+1 >= len(args) {
				return fmt.Errorf("--token requires a value")
			}
			i++
			token = args[i]
		default:
			return fmt.Errorf("unknown argument: %s", arg)
		}
	}
	if token == "" {
		fmt.Print("Session token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	me, err := api.NewClient(cfg.Server.APIBaseURL, token, api.WithLogger(logger)).Me(ctx)
	if err != nil {
		return fmt.Errorf("verifying token: %w", err)
	}
	if err := openCredentials(logger).Set(token); err != nil {
		return err
	}

	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf("Logged in as %s (%s)\n", me.DisplayName(), me.Role)
	return nil
}

func runLogout() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := openCredentials(setupLogger(cfg.Logging)).Delete(); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func runWhoami(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, _, me, err := authenticate(ctx, cfg, setupLogger(cfg.Logging))
	if err != nil {
		return err
	}
	fmt.Printf("%s  id=%s  role=%s\n", me.DisplayName(), me.ID, me.Role)
	return nil
}
