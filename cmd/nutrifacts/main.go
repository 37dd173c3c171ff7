package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"nutrifacts/internal/config"
	"nutrifacts/internal/i18n"
)

const usage = `usage: nutrifacts [--config FILE] [--env-file FILE] [--debug] <command> [flags]

commands:
  login      log in and store the session
  register   create an account
  logout     forget the stored session
  refresh    refresh the access token
  scan       scan a nutrition label and save it to the history
  history    list, filter or show saved scans
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("nutrifacts", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := global.String("config", "", "Path to nutrifacts.yaml")
	envFile := global.String("env-file", "", "Path to a .env file (default ./.env)")
	debug := global.Bool("debug", false, "Log requests and warnings to stderr")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	if *debug {
		cfg.Debug = true
	}
	closeLog := setupLogging(cfg, stderr)
	defer closeLog()

	c, err := newCLI(cfg, stdin, stdout)
	if err != nil {
		log.Printf("startup: %v", err)
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer c.close()

	if err := c.dispatch(ctx, global.Arg(0), global.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
			return 2
		}
		log.Printf("%s: %v", global.Arg(0), err)
		fmt.Fprintln(stderr, c.describe(err))
		return 1
	}
	return 0
}

// setupLogging sends the log to stderr with file:line in debug mode, and
// otherwise appends it to nutrifacts.log next to the device key.
func setupLogging(cfg *config.Config, stderr io.Writer) func() {
	if cfg.Debug {
		log.SetOutput(stderr)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		return func() {}
	}
	log.SetFlags(log.LstdFlags)
	path := filepath.Join(filepath.Dir(cfg.KeyFile), "nutrifacts.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	log.SetOutput(f)
	return func() { _ = f.Close() }
}

func (c *cli) describe(err error) string {
	msg := i18n.Message(err, c.cfg.Lang)
	if i18n.KeyFor(err) == i18n.KeyUnknown {
		return msg + " (" + err.Error() + ")"
	}
	return msg
}
