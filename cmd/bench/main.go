// README: Benchmark runner for the dispatch API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Config struct {
	BaseURL        string
	DSN            string
	RedisAddr      string
	MigrationPath  string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

func main() {
	var cfg Config
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run functional, contention and throughput checks against a running saferide-api",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "base-url", envOrDefault("SAFERIDE_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	f.StringVar(&cfg.DSN, "dsn", os.Getenv("SAFERIDE_DB__DSN"), "Postgres DSN (optional)")
	f.StringVar(&cfg.RedisAddr, "redis", os.Getenv("SAFERIDE_REDIS__ADDR"), "Redis address (optional)")
	f.StringVar(&cfg.MigrationPath, "migration", "migrations/0001_init.sql", "Migration SQL path")
	f.BoolVar(&cfg.ApplyMigration, "apply-migration", false, "Apply migration SQL before tests")
	f.BoolVar(&cfg.Strict, "strict", false, "Fail on pending tests")
	f.DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "Total timeout")
	f.IntVar(&cfg.Concurrency, "concurrency", 20, "Concurrency for contention and perf tests")
	f.DurationVar(&cfg.Duration, "duration", 10*time.Second, "Duration for perf tests")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	bench := NewRunner(cfg)
	results := bench.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, pending, skipped := 0, 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case "PASS":
			pass++
		case "FAIL":
			fail++
		case "PENDING":
			pending++
		case "SKIP":
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d PENDING=%d SKIP=%d\n", pass, fail, pending, skipped)

	if fail > 0 || (cfg.Strict && pending > 0) {
		return fmt.Errorf("%d checks failed, %d pending", fail, pending)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
