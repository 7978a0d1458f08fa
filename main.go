//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ntaio/internal/aio"
	"ntaio/internal/config"
	"ntaio/internal/file"
	"ntaio/internal/logger"
	"ntaio/internal/metrics"
)

const usage = `usage: ntaio [flags] <command> [args]

commands:
  cp SRC DST              copy through a completion port
  mv [-replace] SRC DST   rename
  ln [-replace] SRC DST   hard link
  rm PATH                 delete on last close

flags:
`

func main() {
	configPath := flag.String("config", "", "config file (default $XDG_CONFIG_HOME/ntaio/config.yaml)")
	initConfig := flag.Bool("init-config", false, "write the default config and exit")
	force := flag.Bool("force", false, "overwrite an existing config with -init-config")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault(*configPath, *force)
		if err != nil { fatal(err) }
		fmt.Println(path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil { fatal(err) }
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}

	closeLog, err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil { fatal(err) }
	defer closeLog()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		srv := metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			if err := srv.Serve(ctx, nil); err != nil { slog.Error("Metrics", "err", err) }
		}()
	}

	backend, err := config.CreateBackend(&cfg.Engine)
	if err != nil { fatal(err) }
	eng := aio.CreateEngine(aio.Config{ Inline: cfg.Engine.Inline }, file.CreateManager(nil), backend, nil)

	err = run(ctx, eng, flag.Arg(0), flag.Args()[1:])
	if cerr := eng.Close(); cerr != nil { slog.Error("Close", "err", cerr) }
	if err != nil {
		closeLog()
		fatal(err)
	}
}

func run(ctx context.Context, eng *aio.Engine, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	replace := fs.Bool("replace", false, "replace an existing target")
	if err := fs.Parse(args); err != nil { return err }
	args = fs.Args()

	want := map[string]int{ "cp": 2, "mv": 2, "ln": 2, "rm": 1 }
	n, ok := want[cmd]
	if !ok { return fmt.Errorf("unknown command %q", cmd) }
	if len(args) != n { return fmt.Errorf("%s: expected %d arguments, got %d", cmd, n, len(args)) }

	switch cmd {
	case "cp":
		return copyFile(ctx, eng, args[0], args[1])
	case "mv":
		return rename(eng, args[0], args[1], *replace)
	case "ln":
		return link(eng, args[0], args[1], *replace)
	case "rm":
		return remove(eng, args[0])
	}
	return errors.ErrUnsupported
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ntaio:", err)
	os.Exit(1)
}
