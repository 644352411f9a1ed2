// Package main implements a ballotbox node.
//
//	ballotbox --config /tmp/node1 start --spaces spaces.yaml --owner root\
//	  --clientaddr 127.0.0.1:8080
//	ballotbox --config /tmp/node1 ballot create --creator alice --space dao\
//	  --title Budget --choice yes --choice no --duration 1h
//	ballotbox --config /tmp/node1 ballot vote --id XX --voter carol\
//	  --value 0 --value 1
//	ballotbox --config /tmp/node1 ballot list --space dao
//	ballotbox --config /tmp/node1 proxy prom
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/ballotbox/cli/node"
	db "go.dedis.ch/ballotbox/core/store/kv/controller"
	proxy "go.dedis.ch/ballotbox/proxy/http/controller"
	registry "go.dedis.ch/ballotbox/registry/controller"
)

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{Writer: os.Stdout})
}

type config struct {
	Channel chan os.Signal
	Writer  io.Writer
}

func runWithCfg(args []string, cfg config) error {
	builder := node.NewBuilderWithCfg(
		cfg.Channel,
		cfg.Writer,
		db.NewController(),
		proxy.NewController(),
		registry.NewController(),
	)

	app := builder.Build()

	err := app.Run(args)
	if err != nil {
		return err
	}

	return nil
}
