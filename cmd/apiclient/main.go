package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/layer-3/apiclient"
	"github.com/layer-3/apiclient/core"
	"github.com/layer-3/apiclient/internal/config"
	"github.com/layer-3/apiclient/internal/logger"
)

const usage = `usage: apiclient [-config file] <command> [args]

commands:
  login -u USER [-p PASSWORD]     exchange credentials for a session
  logout                          forget the session
  status                          show the stored session
  get PATH [key=value ...]        GET with query parameters
  delete PATH
  post|put|patch PATH [BODY]      BODY is JSON, @file or - for stdin
  upload PATH [name=value ...] [field@path ...]
`

func main() {
	flags := flag.NewFlagSet("apiclient", flag.ExitOnError)
	configPath := flags.String("config", os.Getenv("APICLIENT_CONFIG"), "path to a config file")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, *configPath, flags.Args(), os.Stdin, os.Stdout, os.Stderr)
	stop()

	if err != nil {
		var apiErr *core.Error
		if errors.As(err, &apiErr) && apiErr.HasStatus() {
			fmt.Fprintf(os.Stderr, "apiclient: %s (status %d)\n", apiErr.Message, apiErr.Status)
		} else {
			fmt.Fprintf(os.Stderr, "apiclient: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.NewWithWriter(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	app, err := apiclient.Open(ctx, cfg, log, apiclient.WithNavigator(newTerminal(stderr)))
	if err != nil {
		return err
	}
	defer app.Close()

	cmd := &command{api: app.Client, stdin: stdin, stdout: stdout}
	return cmd.dispatch(ctx, args[0], args[1:])
}
