package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/authtest"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GOSESSION_LOADTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "gosession-loadtest",
		Short: "Drive concurrent 401 storms through one session",
		Long: `Starts an in-process auth backend, signs in once, then repeatedly expires
the access token and fires concurrent requests through the client pipeline.
Every storm should cost exactly one refresh call.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), loadOptions{
				rounds:      v.GetInt("rounds"),
				concurrency: v.GetInt("concurrency"),
				redisAddr:   v.GetString("redis-addr"),
				verbose:     v.GetBool("verbose"),
			})
		},
	}

	flags := cmd.Flags()
	flags.Int("rounds", 50, "number of expire-and-storm rounds")
	flags.Int("concurrency", 64, "concurrent requests per round")
	flags.String("redis-addr", "", "redis for the backend rate limiter and verdict cache; empty uses miniredis")
	flags.Bool("verbose", false, "log client events to stderr")
	_ = v.BindPFlags(flags)

	return cmd
}

type loadOptions struct {
	rounds      int
	concurrency int
	redisAddr   string
	verbose     bool
}

func run(ctx context.Context, opts loadOptions) error {
	if opts.rounds <= 0 || opts.concurrency <= 0 {
		return fmt.Errorf("rounds and concurrency must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rdb, cleanup, err := openRedis(opts.redisAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	// limits sized so the storm itself is never throttled
	limiter := rate.New(rdb, rate.Config{
		LoginLimit:    10,
		LoginWindow:   time.Minute,
		RefreshLimit:  opts.rounds * 2,
		RefreshWindow: time.Minute,
	})
	srv := authtest.NewServer(authtest.Options{Limiter: limiter})
	defer srv.Close()

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := logr.FromSlogHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	transport := &http.Transport{MaxIdleConnsPerHost: opts.concurrency}
	defer transport.CloseIdleConnections()

	client, err := goSession.New().
		WithBaseURL(srv.URL).
		WithHTTPTransport(transport).
		WithRedis(rdb, "loadtest").
		WithLogger(log).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	defer client.Close()

	if _, err := client.Login(ctx, goSession.Credentials{Username: "admin", Password: "admin123"}); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var (
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.rounds*opts.concurrency)
	)

	start := time.Now()
	for round := 0; round < opts.rounds; round++ {
		srv.Expire()

		var wg sync.WaitGroup
		for i := 0; i < opts.concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t0 := time.Now()
				err := client.DoJSON(ctx, http.MethodGet, authtest.PathEcho, nil, nil)
				d := time.Since(t0)
				if err != nil {
					failures.Add(1)
					log.V(1).Info("request failed", "error", err.Error())
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	total := time.Since(start)

	stats := client.RefreshStats()
	snapshot := client.MetricsSnapshot()
	p := computeStats(latencies)

	fmt.Println("---- results ----")
	fmt.Printf("rounds=%d concurrency=%d requests=%d failures=%d total=%s\n",
		opts.rounds, opts.concurrency, len(latencies), failures.Load(), total.Round(time.Millisecond))
	fmt.Printf("refresh: calls=%d started=%d coalesced=%d failed=%d\n",
		srv.RefreshRounds(), stats.Started, stats.Coalesced, stats.Failed)
	fmt.Printf("retried=%d p50=%s p95=%s p99=%s\n",
		snapshot.Counters[goSession.MetricRequestRetried],
		p.p50.Round(time.Microsecond), p.p95.Round(time.Microsecond), p.p99.Round(time.Microsecond))

	if srv.RefreshRounds() != opts.rounds {
		return fmt.Errorf("expected %d refresh calls, got %d", opts.rounds, srv.RefreshRounds())
	}
	return nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

type latencyStats struct {
	p50 time.Duration
	p95 time.Duration
	p99 time.Duration
}

func computeStats(samples []time.Duration) latencyStats {
	if len(samples) == 0 {
		return latencyStats{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return latencyStats{
		p50: percentile(samples, 50),
		p95: percentile(samples, 95),
		p99: percentile(samples, 99),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
