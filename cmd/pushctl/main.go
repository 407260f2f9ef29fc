// Command pushctl manages push notifications for this device from a terminal:
// subscribing, delivery preferences and the notification feed, against a
// delivery registry such as registryd.
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
	"time"

	"github.com/dmitrymomot/pushkit/pkg/requestid"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pushctl: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pushctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("o", "text", "output format: text or yaml")
	timeout := fs.Duration("timeout", time.Minute, "overall time limit")
	fs.Usage = func() { usage(stderr) }
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	out, err := newPrinter(stdout, *format)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 {
		usage(stderr)
		return fmt.Errorf("%w: missing command", errUsage)
	}
	name, rest := fs.Arg(0), fs.Args()[1:]

	switch name {
	case "help":
		usage(stdout)
		return nil
	case "version":
		fmt.Fprintln(stdout, "pushctl "+version)
		return nil
	case "keygen":
		return keygen(stdout, out)
	}

	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	// every registry call of one invocation shares a request ID
	ctx, _ = requestid.Ensure(ctx)

	e, err := setup(ctx, stdin, stderr)
	if err != nil {
		return err
	}
	defer e.Close()

	return cmd.run(ctx, e, out, rest)
}

// parseFlags reports whether the command should go on. -h stops it without
// an error; any other parse failure is a usage error.
func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	err := fs.Parse(args)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, flag.ErrHelp):
		return false, nil
	}
	return false, errors.Join(errUsage, err)
}
