package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/otgla/internal/config"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rpc"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region main

func main() {
	cfg := config.Default()
	if path := envOr("GLA_CONFIG", ""); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("environment: %v", err)
	}

	dbPath := flag.String("db", cfg.Store.DBPath, "path to the otgla database")
	grammarPath := flag.String("grammar", "", "grammar file (default: the active session's grammar)")
	addr := flag.String("addr", cfg.Server.Addr, "listen address")
	noise := flag.Float64("noise", cfg.Learning.NoiseSigma, "noise sigma for requests that ask for noisy evaluation")
	seed := flag.Uint64("seed", cfg.Learning.Seed, "random seed for noisy evaluation")
	reload := flag.Duration("reload", 0, "poll for a new active grammar at this interval (0 disables)")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: serve --db path/to/otgla.db [--grammar path] [--addr host:port] [--reload 30s]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	snap, err := store.GetCurrent()
	if err != nil {
		log.Fatalf("active grammar: %v", err)
	}
	sess, err := store.GetSession(snap.SessionID)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	if *grammarPath == "" {
		*grammarPath = sess.GrammarPath
	}
	g, err := grammar.LoadFile(*grammarPath, grammar.Options{RIP: sess.Mode == "rip"})
	if err != nil {
		log.Fatalf("load grammar: %v", err)
	}
	values, err := snap.ValuesFor(g.Names())
	if err != nil {
		log.Fatalf("snapshot: %v", err)
	}

	srv, err := rpc.NewServer(g, values, snap.VersionID, *noise, *seed)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen %s: %v", *addr, err)
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(rpc.LoggingInterceptor))
	rpc.RegisterGrammarServer(gs, srv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *reload > 0 {
		go watchActive(ctx, store, srv, g, snap.VersionID, *reload)
	}

	go func() {
		<-ctx.Done()
		log.Printf("shutting down")
		gs.GracefulStop()
	}()

	log.Printf("serving %s grammar %s on %s", sess.Mode, shortID(snap.VersionID), lis.Addr())
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region reload

// watchActive swaps the server's snapshot whenever the active grammar
// version changes.
func watchActive(ctx context.Context, store *state.Store, srv *rpc.Server, g *grammar.Grammar, current string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		snap, err := store.GetCurrent()
		if err != nil {
			log.Printf("reload: %v", err)
			continue
		}
		if snap.VersionID == current {
			continue
		}
		values, err := snap.ValuesFor(g.Names())
		if err != nil {
			log.Printf("reload %s: %v", shortID(snap.VersionID), err)
			continue
		}
		if err := srv.SetSnapshot(values, snap.VersionID); err != nil {
			log.Printf("reload %s: %v", shortID(snap.VersionID), err)
			continue
		}
		current = snap.VersionID
		log.Printf("now serving grammar %s", shortID(current))
	}
}

// #endregion reload

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion helpers
