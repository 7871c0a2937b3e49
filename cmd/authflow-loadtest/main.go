package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/notify"
)

const seedPassword = "loadtest-pass-1"

func main() {
	var (
		users      = flag.Int("users", 200, "number of accounts to seed")
		racers     = flag.Int("racers", 16, "concurrent redeemers per login code")
		codes      = flag.Int("codes", 500, "login codes to race in the redeem phase")
		logins     = flag.Int("logins", 5000, "password logins in the compare phase")
		workers    = flag.Int("concurrency", 64, "workers in the compare phase")
		bcryptCost = flag.Int("bcrypt-cost", 10, "bcrypt cost for seeded accounts")
		redisAddr  = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *racers <= 0 || *codes <= 0 || *logins <= 0 || *workers <= 0 {
		fmt.Fprintln(os.Stderr, "users, racers, codes, logins and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := authflow.DefaultConfig()
	cfg.Session.TTL = 24 * time.Hour
	cfg.Session.TokenTTL = 15 * time.Minute
	cfg.Verification.CodeTTL = time.Hour
	cfg.Verification.LoginCodeTTL = 10 * time.Minute
	cfg.Password.BcryptCost = *bcryptCost

	engine, err := authflow.New().
		WithConfig(cfg).
		WithRedis(client).
		WithEmailSender(&notify.Recorder{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	run := fmt.Sprintf("%d", time.Now().UnixNano())
	emails := make([]string, *users)
	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d-%s@load.test", i, run)
		if _, err := engine.Register(ctx, authflow.RegisterRequest{Email: emails[i], Password: seedPassword}); err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	redeem := runRedeemPhase(ctx, engine, emails, *codes, *racers)
	compare := runComparePhase(ctx, engine, emails, *logins, *workers)

	fmt.Println("---- results ----")
	printStats("redeem", redeem)
	printStats("compare", compare)
	if redeem.violations > 0 {
		fmt.Fprintf(os.Stderr, "%d codes issued more than one session\n", redeem.violations)
		os.Exit(1)
	}
}

// runRedeemPhase mints login codes and has racers redeem each one at once.
// Exactly one racer per code may win.
func runRedeemPhase(ctx context.Context, engine *authflow.Engine, emails []string, codes, racers int) phaseStats {
	var (
		failures   int64
		violations int64
		latencies  = make([]time.Duration, 0, codes*racers)
		mu         sync.Mutex
	)

	start := time.Now()
	for c := 0; c < codes; c++ {
		var code string
		_, err := engine.Authenticate(ctx, authflow.EmailStep{Email: emails[c%len(emails)]},
			authflow.WithAfterCodeGenerated(func(_ context.Context, ev authflow.CodeGenerated) error {
				code = ev.Code
				return nil
			}),
		)
		if err != nil {
			atomic.AddInt64(&failures, 1)
			continue
		}

		var (
			wg   sync.WaitGroup
			wins int64
		)
		for r := 0; r < racers; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t0 := time.Now()
				_, err := engine.Authenticate(ctx, authflow.CodeStep{Code: code})
				d := time.Since(t0)
				switch {
				case err == nil:
					atomic.AddInt64(&wins, 1)
				case errors.Is(err, authflow.ErrCodeConsumed):
				default:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		wg.Wait()
		if wins != 1 {
			violations++
		}
	}
	total := time.Since(start)
	s := computeStats(total, latencies, failures)
	s.violations = violations
	return s
}

// runComparePhase measures password logins, which after the first attempt per
// account are served from the comparison cache.
func runComparePhase(ctx context.Context, engine *authflow.Engine, emails []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				email := emails[r.Intn(len(emails))]
				t0 := time.Now()
				_, err := engine.Authenticate(ctx, authflow.PasswordStep{Email: email, Password: seedPassword})
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total      time.Duration
	ops        int
	failures   int64
	violations int64
	p50        time.Duration
	p95        time.Duration
	p99        time.Duration
	opsPerS    float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
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

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
