// buildtool inspects, converts and generates 3MF and STL files.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/buildplate/internal/config"
	"github.com/Faultbox/buildplate/internal/logger"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("config: %+v", cfg)

	args := config.Args()
	if len(args) < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Stdout, cfg, args[0], args[1:]); err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, command string, args []string) error {
	switch command {
	case "info":
		return cmdInfo(out, args)
	case "convert":
		return cmdConvert(ctx, out, cfg, args)
	case "sample":
		return cmdSample(ctx, out, cfg, args)
	case "version":
		return cmdVersion(out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `buildtool - 3MF and STL model utility

Usage:
  buildtool [-config file] [-debug] [-out dir] [-log-file file] <command> [options]

Commands:
  info <file>                 Show unit, metadata, objects and build items
  convert <in> <out>...       Convert a model; output format follows the extension
  sample [-name scene]        Write a sample scene in every configured format
  version                     Show library version and formats

Examples:
  buildtool info plate.3mf
  buildtool convert plate.3mf plate.stl plate-copy.3mf
  buildtool -out ./build sample -name components`)
}
