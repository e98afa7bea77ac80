// Package main provides the entry point for the remote worker daemon:
// the small binary internal/remote's Bootstrap uploads to an SSH host and
// starts with --worker-daemon, exposing internal/remoteworker's HTTP API
// once listening.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xln3/forgeagent/internal/remoteworker"
)

var (
	port         = flag.Int("port", 0, "HTTP port (0 picks an ephemeral port)")
	directory    = flag.String("directory", "", "Working directory for exec/file operations")
	workerDaemon = flag.Bool("worker-daemon", false, "Run as a bootstrapped remote worker daemon")
	version      = flag.Bool("version", false, "Print version and exit")
)

const (
	// Version is reported in the DAEMON_STARTED banner and the /health
	// endpoint; internal/remote's Bootstrap does not pin a particular
	// value, only that it parses as a string.
	Version = "0.1.0"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("opencode-server %s\n", Version)
		os.Exit(0)
	}
	if !*workerDaemon {
		log.Fatal("opencode-server: pass --worker-daemon; this binary only runs as a bootstrapped remote worker")
	}

	workDir := *directory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			log.Fatalf("opencode-server: get working directory: %v", err)
		}
	}

	token := os.Getenv("FORGEAGENT_TOKEN")
	if token == "" {
		log.Fatal("opencode-server: FORGEAGENT_TOKEN must be set by the bootstrapping caller")
	}

	cfg := remoteworker.DefaultConfig()
	cfg.Port = *port
	cfg.Token = token
	cfg.WorkDir = workDir
	cfg.Version = Version

	shutdown := make(chan struct{})
	srv := remoteworker.New(cfg, func() { close(shutdown) })

	ln, err := srv.Listen()
	if err != nil {
		log.Fatalf("opencode-server: listen: %v", err)
	}

	printDaemonStarted(ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("opencode-server: serve: %v", err)
		}
	case <-shutdown:
	case <-sig:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("opencode-server: shutdown: %v", err)
	}
}

// printDaemonStarted emits the line internal/remote's Bootstrap scans
// stdout for, extracting the port the OS actually bound.
func printDaemonStarted(addr string) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		log.Fatalf("opencode-server: parse bound address %q: %v", addr, err)
	}
	fmt.Printf("DAEMON_STARTED:{\"pid\":%d,\"port\":%s,\"version\":%q,\"capabilities\":[\"exec\",\"file\"]}\n",
		os.Getpid(), portStr, Version)
}
