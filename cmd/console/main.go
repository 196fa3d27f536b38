package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"console/internal/client"
	"console/internal/config"
	"console/internal/directory"
	"console/internal/gate"
	"console/internal/logger"
	"console/internal/registry"
	"console/internal/shell"
	"console/internal/syncengine"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	cfg, err := config.LoadConsole()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var verbose bool
	flags := pflag.NewFlagSet("console", pflag.ContinueOnError)
	flags.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "base URL of the permission API")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "bearer token; skips login")
	flags.StringVar(&cfg.Email, "email", cfg.Email, "login email")
	flags.StringVar(&cfg.Password, "password", cfg.Password, "login password (prompted when empty)")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log requests and state changes to stderr")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	log, err := logger.NewConsole(cfg.Environment, verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Console, log *zap.Logger) error {
	in := bufio.NewReader(os.Stdin)
	out := os.Stdout

	// Unblock the pending read on interrupt.
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	token := cfg.Token
	if token == "" {
		t, err := login(ctx, cfg, in, out)
		if err != nil {
			return err
		}
		token = t
	}

	api := client.New(cfg.APIURL, client.WithToken(token), client.WithTimeout(cfg.Timeout))
	terminal := gate.NewTerminal(in, out)

	modules := registry.New(api, log.Named("registry"))
	roles := directory.New(api, terminal, terminal, log.Named("directory"))
	engine := syncengine.New(api, modules, terminal, terminal, log.Named("syncengine"))
	roles.Subscribe(engine)

	sh := shell.New(in, out, modules, roles, engine, terminal, log.Named("shell"))
	if err := sh.Bootstrap(ctx); err != nil {
		log.Warn("session started with partial data", zap.Error(err))
	}
	return sh.Run(ctx)
}

// login asks for whatever credentials the configuration lacks and exchanges
// them for a token.
func login(ctx context.Context, cfg *config.Console, in *bufio.Reader, out io.Writer) (string, error) {
	email := cfg.Email
	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password := cfg.Password
	if password == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errors.New("no terminal available for the password prompt (use --password or CONSOLE_PASSWORD)")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}

	token, err := client.New(cfg.APIURL, client.WithTimeout(cfg.Timeout)).Login(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return token, nil
}
