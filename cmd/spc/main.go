package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTBurke/spc"
	"github.com/spf13/pflag"
)

func main() {
	args, opts, err := spc.ParseCommandLine()
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Printf("Could not parse configuration: %s\n\nUse spc --help for options\n", err)
		}
		os.Exit(1)
	}
	if len(args) > 0 {
		opts = append(opts, spc.File(args[0]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, errs := spc.New(ctx, opts...)
	if len(errs) > 0 {
		fmt.Println("Error in config:")
		for _, e := range errs {
			fmt.Println(e)
		}
		os.Exit(1)
	}

	out, err := cmd.Exec(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Analysis error:", err)
		cmd.Close(context.Background())
		os.Exit(1)
	}

	wait, cancel := context.WithTimeout(context.Background(), cmd.Config.NotifyTimeout+5*time.Second)
	defer cancel()
	if err := cmd.Wait(wait); err != nil {
		fmt.Fprintf(os.Stderr, "Not all notifications sent: %s\n", err)
		os.Exit(1)
	}

	if out.Critical() {
		os.Exit(2)
	}
	os.Exit(0)
}
