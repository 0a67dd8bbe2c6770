package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"pipelined.dev/radio/config"
)

type configCommand struct{}

func (cmd *configCommand) Name() string {
	return "config"
}

func (cmd *configCommand) Help() string {
	return "Print default configuration"
}

func (cmd *configCommand) Register(*flag.FlagSet) {}

func (cmd *configCommand) Run(context.Context) error {
	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
