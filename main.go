package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghost-mesh/ghost-node/config"
	"github.com/ghost-mesh/ghost-node/node"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("main")

func main() {
	path := flag.String("config", "config.jsonc", "path to the jsonc config file")
	flag.Parse()

	options, err := config.Load(*path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("cannot read %s: %s", *path, err)
		}
		log.Warnf("%s not found, running with defaults", *path)
		options = config.Default()
	}

	if err := logging.SetLogLevel("*", options.LogLevel); err != nil {
		log.Warnf("bad log level %q: %s", options.LogLevel, err)
	}

	n, err := node.New(options)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		log.Fatal(err)
	}

	<-ctx.Done()
	n.Stop()
}
