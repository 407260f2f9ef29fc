package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/pushkit/pkg/config"
	"github.com/dmitrymomot/pushkit/pkg/feed"
	"github.com/dmitrymomot/pushkit/pkg/kv"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/preferences"
	"github.com/dmitrymomot/pushkit/pkg/push"
	"github.com/dmitrymomot/pushkit/pkg/redis"
	"github.com/dmitrymomot/pushkit/pkg/registry"
	"github.com/dmitrymomot/pushkit/pkg/requestid"
)

type cliConfig struct {
	StateFile string     `env:"PUSHCTL_STATE_FILE"`
	LogLevel  slog.Level `env:"PUSHCTL_LOG_LEVEL" envDefault:"WARN"`
}

// env holds what every command shares: the registry client, the state store
// and the terminal.
type env struct {
	log      *slog.Logger
	stdin    *bufio.Reader
	stderr   io.Writer
	store    kv.Store
	registry *registry.Client
	push     push.Config
	closers  []func() error
}

func setup(ctx context.Context, stdin io.Reader, stderr io.Writer) (*env, error) {
	var (
		cli     cliConfig
		regCfg  registry.Config
		pushCfg push.Config
		redCfg  redis.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&cli) },
		func() error { return config.Load(&regCfg) },
		func() error { return config.Load(&pushCfg) },
		func() error { return config.Load(&redCfg) },
	} {
		if err := load(); err != nil {
			return nil, err
		}
	}

	log := logger.New(
		logger.WithTextFormatter(),
		logger.WithLevel(cli.LogLevel),
		logger.WithOutput(stderr),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	e := &env{
		log:    log,
		stdin:  bufio.NewReader(stdin),
		stderr: stderr,
		push:   pushCfg,
	}

	if redCfg.Enabled() {
		client, err := redis.Connect(ctx, redCfg)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, client.Close)
		e.store = kv.NewRedis(client, kv.WithPrefix(redCfg.KeyPrefix+"pushctl:"))
	} else {
		path, err := statePath(cli.StateFile)
		if err != nil {
			return nil, err
		}
		e.store = kv.NewFile(path)
	}

	client, err := registry.NewFromConfig(regCfg, registry.WithLogger(log))
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.registry = client
	return e, nil
}

func statePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate state file: %w", err)
	}
	return filepath.Join(dir, "pushctl", "state.json"), nil
}

func (e *env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// manager builds a subscription manager over a platform whose channel lives
// in the state store. A nil prompt asks on the terminal.
func (e *env) manager(prompt func(context.Context) push.Permission) *push.Manager {
	if prompt == nil {
		prompt = e.ask
	}
	platform := push.NewMemoryPlatform(
		push.WithPlatformStore(e.store),
		push.WithPrompt(prompt),
	)
	return push.NewManager(platform, e.registry,
		push.WithConfig(e.push),
		push.WithStore(e.store),
		push.WithLogger(e.log),
	)
}

func (e *env) preferences() *preferences.Store {
	return preferences.NewStore(e.registry,
		preferences.WithStore(e.store),
		preferences.WithLogger(e.log),
		preferences.WithCallTimeout(e.push.CallTimeout),
	)
}

func (e *env) feed() *feed.Feed {
	return feed.New(e.registry,
		feed.WithLogger(e.log),
		feed.WithCallTimeout(e.push.CallTimeout),
	)
}

// ask is the permission prompt. Anything but an explicit answer leaves the
// permission undecided.
func (e *env) ask(context.Context) push.Permission {
	fmt.Fprint(e.stderr, "Allow push notifications on this device? [y/n] ")
	line, err := e.stdin.ReadString('\n')
	if err != nil && line == "" {
		return push.PermissionDefault
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return push.PermissionGranted
	case "n", "no":
		return push.PermissionDenied
	}
	return push.PermissionDefault
}
