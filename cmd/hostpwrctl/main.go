// Package main provides executable requesting host power state transitions from OpenBMC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coreos/pkg/flagutil"
	"k8s.io/klog/v2"

	"github.com/openbmc/hostpwrctl/pkg/controller"
	"github.com/openbmc/hostpwrctl/pkg/dbus"
	"github.com/openbmc/hostpwrctl/pkg/journal"
	"github.com/openbmc/hostpwrctl/pkg/objectmapper"
	"github.com/openbmc/hostpwrctl/pkg/properties"
	"github.com/openbmc/hostpwrctl/pkg/statewatch"
	"github.com/openbmc/hostpwrctl/pkg/transition"
	"github.com/openbmc/hostpwrctl/pkg/version"
)

const envPrefix = "HOSTPWRCTL"

var (
	printVersion = flag.Bool("version", false, "Print version and exit")
	timeout      = flag.Duration("timeout", controller.DefaultTimeout,
		"Time to wait for chassis and host to report requested power state")
)

func main() {
	klog.InitFlags(nil)

	if err := flag.Set("logtostderr", "true"); err != nil {
		klog.Fatalf("Failed to set %q flag value: %v", "logtostderr", err)
	}

	app := filepath.Base(os.Args[0])

	flag.Usage = func() {
		usage(flag.CommandLine.Output(), app)
		fmt.Fprintln(flag.CommandLine.Output(), "The flags:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if err := flagutil.SetFlagsFromEnv(flag.CommandLine, envPrefix); err != nil {
		klog.Fatalf("Failed to parse environment variables: %v", err)
	}

	if *printVersion {
		fmt.Println(version.Format())
		os.Exit(0)
	}

	if err := validateTimeout(*timeout); err != nil {
		fmt.Printf("Invalid timeout: %v\n", err)
		usage(os.Stdout, app)
		os.Exit(1)
	}

	if flag.NArg() != 1 {
		usage(os.Stdout, app)
		os.Exit(1)
	}

	request, err := transition.Dispatch(flag.Arg(0))
	if err != nil {
		klog.V(2).Infof("Dispatching: %v", err)
		usage(os.Stdout, app)
		os.Exit(1)
	}

	if err := run(request, *timeout); err != nil {
		klog.V(2).Infof("Run finished: %v", err)
		reportRunError(os.Stdout, err)
		os.Exit(1)
	}
}

func run(request transition.Request, timeout time.Duration) error {
	conn, err := dbus.New(dbus.SystemPrivateConnector)
	if err != nil {
		return fmt.Errorf("connecting to the system bus: %w", err)
	}

	defer func() {
		if err := conn.Close(); err != nil {
			klog.Warningf("Failed closing D-Bus connection: %v", err)
		}
	}()

	mapper, err := objectmapper.New(conn)
	if err != nil {
		return fmt.Errorf("creating object mapper client: %w", err)
	}

	props, err := properties.New(conn, mapper)
	if err != nil {
		return fmt.Errorf("creating properties client: %w", err)
	}

	// Subscribe before reading current states, so no change in between is missed.
	watcher, err := statewatch.New(conn, statewatch.DefaultSubscriptions()...)
	if err != nil {
		return fmt.Errorf("subscribing to power state changes: %w", err)
	}

	defer func() {
		if err := watcher.Close(); err != nil {
			klog.Warningf("Failed removing signal subscriptions: %v", err)
		}
	}()

	config := &controller.Config{
		Properties: props,
		Receiver:   watcher,
		Request:    request,
		Timeout:    timeout,
	}

	if journal.Enabled() {
		config.Reporter = journal.New(filepath.Base(os.Args[0]))
	}

	c, err := controller.New(config)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return c.Run(ctx)
}

func usage(w io.Writer, app string) {
	fmt.Fprintf(w, "Usage: %s [flags] <command>\n", app)
	fmt.Fprintln(w, "The commands:")

	for _, op := range transition.Operations() {
		fmt.Fprintf(w, "  %-6s - %s\n", op.Operation, op.Help)
	}
}

func validateTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("timeout can't be negative, got %s", timeout)
	}

	return nil
}

// reportRunError prints a line for errors the controller has not already printed.
func reportRunError(w io.Writer, err error) {
	if errors.Is(err, controller.ErrConfirmationTimeout) || errors.Is(err, controller.ErrInterrupted) {
		return
	}

	fmt.Fprintf(w, "Unable to perform operation: %v\n", err)
}
