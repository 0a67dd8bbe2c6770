// Command iqsync recovers the carrier of IQ recordings stored in WAV
// files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
)

type command interface {
	Name() string
	Help() string
	Register(*flag.FlagSet)
	Run(context.Context) error
}

const (
	successExitCode = 0
	errorExitCode   = 1
)

type cli struct {
	args     []string
	commands []command
}

func (c *cli) run(ctx context.Context) int {
	cmdName, args := parseArgs(c.args)
	if cmdName == "" {
		c.printUsage()
		return errorExitCode
	}

	for _, cmd := range c.commands {
		if cmd.Name() != cmdName {
			continue
		}
		flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			flags.PrintDefaults()
			return errorExitCode
		}
		if err := cmd.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	c.printUsage()
	return errorExitCode
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := cli{
		args: os.Args,
		commands: []command{
			&syncCommand{},
			&configCommand{},
		},
	}
	code := c.run(ctx)
	stop()
	os.Exit(code)
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func (c *cli) printUsage() {
	fmt.Println("iqsync recovers carrier of IQ recordings")
	fmt.Println()
	fmt.Println("Usage: iqsync <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, cmd := range c.commands {
		fmt.Printf("\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}
