package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/clambin/go-common/httputils"
	"github.com/clambin/github-bio-search/internal/auth"
	"github.com/clambin/github-bio-search/internal/github"
	"github.com/clambin/github-bio-search/internal/search"
	"github.com/clambin/github-bio-search/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var version = "change-me"

type configuration struct {
	Debug     bool
	Addr      string
	PromAddr  string
	Directory string
	GitHub    githubConfiguration
	Slack     slackConfiguration
	Search    searchConfiguration
}

type githubConfiguration struct {
	Token        string
	Rate         float64
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type slackConfiguration struct {
	SigningSecret string
}

type searchConfiguration struct {
	PerPage     int
	Concurrency int
	Timeout     time.Duration
}

func parseConfiguration(f *flag.FlagSet, args []string) (configuration, error) {
	var cfg configuration
	f.BoolVar(&cfg.Debug, "debug", false, "Enable debug mode")
	f.StringVar(&cfg.Addr, "addr", ":8080", "Address for the API server")
	f.StringVar(&cfg.PromAddr, "prom.addr", ":9091", "Prometheus handler address")
	f.StringVar(&cfg.Directory, "directory", ".", "Directory to store signed-in users' tokens")
	f.StringVar(&cfg.GitHub.Token, "github.token", "", "GitHub API token, used when the caller has no token of their own")
	f.Float64Var(&cfg.GitHub.Rate, "github.rate", 0, "Maximum GitHub API requests per second (0: no limit)")
	f.StringVar(&cfg.GitHub.ClientID, "github.client-id", "", "GitHub OAuth app client ID. Leave blank to disable sign-in")
	f.StringVar(&cfg.GitHub.ClientSecret, "github.client-secret", "", "GitHub OAuth app client secret")
	f.StringVar(&cfg.GitHub.RedirectURL, "github.redirect-url", "", "GitHub OAuth app redirect URL, e.g. https://example.com/auth/callback")
	f.StringVar(&cfg.Slack.SigningSecret, "slack.signing-secret", "", "Slack app signing secret. Leave blank to accept unsigned requests")
	f.IntVar(&cfg.Search.PerPage, "search.per-page", search.DefaultPerPage, "Users per page (1-100)")
	f.IntVar(&cfg.Search.Concurrency, "search.concurrency", 12, "Maximum number of users enriched in parallel")
	f.DurationVar(&cfg.Search.Timeout, "search.timeout", 10*time.Second, "Maximum time to enrich one user")
	if err := f.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Search.PerPage < 1 || cfg.Search.PerPage > search.MaxPerPage {
		return cfg, fmt.Errorf("search.per-page must be between 1 and %d", search.MaxPerPage)
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfiguration(flag.CommandLine, os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var opts slog.HandlerOptions
	if cfg.Debug {
		opts.Level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &opts))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err = run(ctx, cfg, registry, l); err != nil {
		l.Error("github-bio-search failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg configuration, registry *prometheus.Registry, l *slog.Logger) error {
	l.Info("github-bio-search is starting", "version", version)

	githubMetrics := github.NewMetrics("github_bio_search", "")
	searchMetrics := search.NewMetrics("github_bio_search", "")
	if err := registry.Register(githubMetrics); err != nil {
		return fmt.Errorf("register github metrics: %w", err)
	}
	if err := registry.Register(searchMetrics); err != nil {
		return fmt.Errorf("register search metrics: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.GitHub.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.GitHub.Rate), 1)
	}
	httpClient := github.NewHTTPClient(limiter, githubMetrics)

	tokens := auth.NewStore(cfg.Directory, auth.Static(cfg.GitHub.Token))
	if err := tokens.Load(); err != nil {
		l.Warn("token store not found. possibly this is a new installation", "err", err)
	}

	serverConfig := server.Config{
		Searcher: search.Searcher{
			NewClient: func(token string) search.Client {
				return github.NewClient(token, httpClient)
			},
			Enricher: search.Enricher{
				Concurrency: cfg.Search.Concurrency,
				Timeout:     cfg.Search.Timeout,
				Metrics:     searchMetrics,
			},
			PerPage: cfg.Search.PerPage,
			Metrics: searchMetrics,
		},
		Tokens:             tokens,
		PerPage:            cfg.Search.PerPage,
		SlackSigningSecret: cfg.Slack.SigningSecret,
	}
	if cfg.GitHub.ClientID != "" {
		serverConfig.Exchanger = auth.NewExchanger(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL)
	} else {
		l.Info("no GitHub OAuth app configured. sign-in disabled")
	}
	s := server.New(serverConfig, l.With("component", "server"))

	var g errgroup.Group
	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		return httputils.RunServer(ctx, &http.Server{Addr: cfg.PromAddr, Handler: mux})
	})
	g.Go(func() error {
		err := httputils.RunServer(ctx, &http.Server{Addr: cfg.Addr, Handler: s})
		// let background Slack searches post their results
		s.Slack.Wait()
		return err
	})
	return g.Wait()
}
