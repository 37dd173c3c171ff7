package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"nutrifacts/internal/adapter/api"
	"nutrifacts/internal/adapter/memory"
	"nutrifacts/internal/adapter/postgres"
	"nutrifacts/internal/adapter/sqlite"
	"nutrifacts/internal/app"
	"nutrifacts/internal/config"
	"nutrifacts/internal/domain"
	"nutrifacts/internal/secure"
)

var errUsage = errors.New("usage")

type cli struct {
	cfg *config.Config
	in  *bufio.Reader
	out io.Writer

	client   *api.Client
	sessions *app.SessionService
	history  *app.HistoryService
	closers  []func() error
}

func newCLI(cfg *config.Config, stdin io.Reader, stdout io.Writer) (*cli, error) {
	c := &cli{cfg: cfg, in: bufio.NewReader(stdin), out: stdout}

	store, err := c.openStore()
	if err != nil {
		c.close()
		return nil, err
	}

	c.client = api.New(cfg.APIURL, cfg.HTTPTimeout)
	c.sessions = app.NewSessionService(store, c.client)
	c.history = app.NewHistoryService(c.client)
	return c, nil
}

// openStore opens the configured token store. Persistent stores are
// encrypted with the device key.
func (c *cli) openStore() (domain.KeyValueStore, error) {
	var inner domain.KeyValueStore
	switch c.cfg.Store.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		db, err := sqlite.Open(c.cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		inner = db
	case config.DriverPostgres:
		db, err := postgres.Open(c.cfg.Store.DSN, c.cfg.Store.Namespace)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		inner = db
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.cfg.Store.Driver)
	}

	key, err := secure.LoadOrCreateKey(c.cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("device key: %w", err)
	}
	return secure.NewStore(inner, key)
}

func (c *cli) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func (c *cli) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		return c.logout(ctx, args)
	case "refresh":
		return c.refresh(ctx, args)
	case "scan":
		return c.scan(ctx, args)
	case "history":
		return c.showHistory(ctx, args)
	default:
		fmt.Fprintf(c.out, "unknown command %q\n\n%s", name, usage)
		return errUsage
	}
}

// ask prints prompt and reads one line of input.
func (c *cli) ask(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *cli) confirm(prompt string) (bool, error) {
	answer, err := c.ask(prompt + " [y/N] ")
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes", "d", "da":
		return true, nil
	}
	return false, nil
}

func (c *cli) println(a ...any) {
	fmt.Fprintln(c.out, a...)
}
