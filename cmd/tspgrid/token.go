package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/katalvlaran/tspgrid/dispatch"
)

func runToken(args []string, stdout, stderr io.Writer) int {
	var (
		secret, name string
		ttl          time.Duration
	)
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	fs.StringVar(&secret, "secret", "", "coordinator token secret")
	fs.StringVar(&name, "name", "", "worker or relay name")
	fs.DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	if ok, code := parse(fs, args, stderr); !ok {
		return code
	}
	if secret == "" || name == "" || fs.NArg() > 0 {
		fmt.Fprintln(stderr, "usage: tspgrid token --secret s --name n [--ttl d]")
		return exitUsage
	}
	tok, err := dispatch.IssueToken([]byte(secret), name, ttl)
	if err != nil {
		fmt.Fprintf(stderr, "tspgrid: %v\n", err)
		return exitFailed
	}
	fmt.Fprintln(stdout, tok)

	return exitOK
}
