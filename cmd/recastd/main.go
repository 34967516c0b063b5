// recastd is the recast background daemon. It owns the conversion queue
// workflow, the HTTP API with its event stream, and the removable media
// watcher. The recast CLI launches and controls it; running it by hand is
// only needed for debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"recast/internal/config"
	"recast/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recastd: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "recastd: %v\n", err)
		os.Exit(1)
	}
}
