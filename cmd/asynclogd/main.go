// Command asynclogd is a demo/bench binary exercising the logging pipeline
// end to end: two goroutines, each bound to its own channel, submit records
// concurrently while the main goroutine logs too, showing that per-channel
// template values never cross between channels.
//
// Usage:
//
//	asynclogd [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/vpbank/asynclog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "asynclogd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		output       string
		host         string
		port         string
		spoolPath    string
		templatePath string
		level        string
		bufSize      int
		iterations   int
		logFmt       string
	)

	flag.StringVar(&output, "output", "console", "Sink kind: console or http")
	flag.StringVar(&host, "http.host", "localhost", "HTTP sink host")
	flag.StringVar(&port, "http.port", "24224", "HTTP sink port")
	flag.StringVar(&spoolPath, "http.spool", "asynclog_spool.log", "HTTP sink spool file path")
	flag.StringVar(&templatePath, "template", "", "Path to a YAML template definition file")
	flag.StringVar(&level, "level", "info", "Minimum severity: trace, debug, info, warning, error, critical")
	flag.IntVar(&bufSize, "buffer.size", 1000, "Ring queue capacity")
	flag.IntVar(&iterations, "iterations", 1000, "Records emitted per goroutine")
	flag.StringVar(&logFmt, "log.fmt", "text", "Diagnostic log format: text or json")
	flag.Parse()

	diag, err := buildLogger(logFmt)
	if err != nil {
		return err
	}

	opts := asynclog.Options{
		OutputKind:     asynclog.OutputKind(output),
		Host:           host,
		Port:           port,
		SpoolPath:      spoolPath,
		TemplatePath:   templatePath,
		BaseFormat:     "[<TIME>][<LEVEL>][<VERS>][<THREAD>]<MSG>",
		Level:          level,
		BufferCapacity: bufSize,
		InjectRecordID: true,
		Logger:         diag,
	}

	lg, err := asynclog.Init(opts)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	lg.SetGlobalValue("VERS", "v0.0.1")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mainCh := lg.Channel("main")
	mainCh.SetValue("THREAD", "main")
	mainCh.Info("Hello")
	mainCh.Info("World")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			loop(ctx, lg, index, iterations)
		}(i)
	}

	diag.Info("asynclogd: running", "goroutines", 2, "iterations", iterations)
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return lg.Shutdown(shutdownCtx)
}

// loop is one producer bound to its own channel, hammering Info while the
// channel's THREAD slot stays local to it.
func loop(ctx context.Context, lg *asynclog.Logger, index, iterations int) {
	ch := lg.Channel("loop" + strconv.Itoa(index))
	ch.SetValue("THREAD", "loop"+strconv.Itoa(index))

	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ch.Info("Hello from " + strconv.Itoa(i))
	}
}

func buildLogger(format string) (*slog.Logger, error) {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, nil)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, nil)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}
	return slog.New(handler), nil
}
