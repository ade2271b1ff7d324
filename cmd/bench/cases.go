// README: Bench cases; environment, seeded dispatch flow, claim race and read load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"fooddispatch/internal/infra"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// Filled in as the flow cases run.
	orderID      string
	assignmentID string
	notified     []string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: pingDB},
		{Name: "Env: Redis connect", Run: pingRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: tablesExist},
		{Name: "API: health", Run: health},
		{Name: "Seed: store and confirmed order", Run: seedOrder},
		{Name: "Seed: drivers via driver feed", Run: seedDrivers},
		{Name: "Dispatch: confirmed order -> 201", Run: dispatchOrder},
		{Name: "Dispatch: second dispatch while pending -> 409", Run: dispatchAgain},
		{Name: "Claim: non-candidate driver -> 403", Run: claimByStranger},
		{Name: "Claim: concurrent claims -> exactly one winner", Run: claimRace},
		{Name: "Cancel: claimed assignment stays claimed", Run: cancelAfterClaim},
		{Name: "Load: assignment reads", Run: readLoad},
	}
}

func pingDB(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS"}
}

func pingRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: "FAIL", Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS"}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: "SKIP", Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	if err := infra.Migrate(ctx, r.db, r.cfg.MigrationPath); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS"}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if !exists {
			return Result{Status: "FAIL", Note: "missing table: " + t}
		}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("tables=%d", len(tables))}
}

func health(ctx context.Context, r *Runner) Result {
	status, _, latency, err := r.call(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: "PASS", Latency: latency}
}

func seedOrder(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	storeID := "bench-store-" + uuid.NewString()[:8]
	r.orderID = "bench-order-" + uuid.NewString()[:8]
	_, err := r.db.Exec(ctx,
		`INSERT INTO stores (id, name, address, lat, lng) VALUES ($1, 'Bench Kitchen', 'bench', $2, $3)`,
		storeID, r.cfg.StoreLat, r.cfg.StoreLng)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO orders (id, store_id, delivery_address, delivery_city, total_amount, delivery_fee, currency, status)
		VALUES ($1, $2, $3, $4, 2599, 450, 'USD', 'confirmed')`,
		r.orderID, storeID, r.cfg.DeliveryAddress, r.cfg.DeliveryCity)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS", Note: "order=" + r.orderID}
}

func seedDrivers(ctx context.Context, r *Runner) Result {
	start := time.Now()
	for i := range r.cfg.Drivers {
		id := fmt.Sprintf("bench-driver-%d", i)
		// Roughly 300 m apart, all well inside the default radius.
		lat := r.cfg.StoreLat + float64(i)*0.003
		steps := []struct {
			path string
			body any
		}{
			{"/api/drivers/" + id, map[string]any{"name": id, "notify_token": "bench-" + id, "rating": 4.5}},
			{"/api/drivers/" + id + "/location", map[string]any{"lat": lat, "lng": r.cfg.StoreLng}},
			{"/api/drivers/" + id + "/availability", map[string]any{"available": true}},
		}
		for _, s := range steps {
			status, _, _, err := r.call(ctx, http.MethodPut, s.path, s.body)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if status != http.StatusOK {
				return Result{Status: "FAIL", Note: fmt.Sprintf("%s status=%d", s.path, status)}
			}
		}
	}
	return Result{Status: "PASS", Latency: time.Since(start), Note: fmt.Sprintf("drivers=%d", r.cfg.Drivers)}
}

func dispatchOrder(ctx context.Context, r *Runner) Result {
	if r.orderID == "" {
		return Result{Status: "SKIP", Note: "no seeded order"}
	}
	status, body, latency, err := r.call(ctx, http.MethodPost, "/api/orders/"+r.orderID+"/dispatch", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d body=%s", status, body)}
	}
	var resp struct {
		AssignmentID string   `json:"assignment_id"`
		Notified     []string `json:"notified"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	r.assignmentID = resp.AssignmentID
	r.notified = resp.Notified
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("notified=%d", len(resp.Notified))}
}

func dispatchAgain(ctx context.Context, r *Runner) Result {
	if r.assignmentID == "" {
		return Result{Status: "SKIP", Note: "no assignment"}
	}
	status, _, latency, err := r.call(ctx, http.MethodPost, "/api/orders/"+r.orderID+"/dispatch", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusConflict {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: "PASS", Latency: latency}
}

func claimByStranger(ctx context.Context, r *Runner) Result {
	if r.assignmentID == "" {
		return Result{Status: "SKIP", Note: "no assignment"}
	}
	status, _, latency, err := r.call(ctx, http.MethodPost, "/api/assignments/"+r.assignmentID+"/claim",
		map[string]any{"driver_id": "bench-stranger"})
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != http.StatusForbidden {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: "PASS", Latency: latency}
}

func claimRace(ctx context.Context, r *Runner) Result {
	if r.assignmentID == "" || len(r.notified) == 0 {
		return Result{Status: "SKIP", Note: "no assignment"}
	}
	var wins, conflicts, other atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for i := range r.cfg.Concurrency {
		driver := r.notified[i%len(r.notified)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _, err := r.call(ctx, http.MethodPost, "/api/assignments/"+r.assignmentID+"/claim",
				map[string]any{"driver_id": driver})
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusOK:
				wins.Add(1)
			case status == http.StatusConflict:
				conflicts.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d other=%d", wins.Load(), conflicts.Load(), other.Load())
	if wins.Load() != 1 || other.Load() != 0 {
		return Result{Status: "FAIL", Latency: time.Since(start), Note: note}
	}
	return Result{Status: "PASS", Latency: time.Since(start), Note: note}
}

func cancelAfterClaim(ctx context.Context, r *Runner) Result {
	if r.orderID == "" {
		return Result{Status: "SKIP", Note: "no seeded order"}
	}
	status, body, latency, err := r.call(ctx, http.MethodPost, "/api/orders/"+r.orderID+"/cancel", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	var resp struct {
		Cancelled int `json:"cancelled"`
	}
	_ = json.Unmarshal(body, &resp)
	if status != http.StatusOK || resp.Cancelled != 0 {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d cancelled=%d", status, resp.Cancelled)}
	}
	return Result{Status: "PASS", Latency: latency}
}

func readLoad(ctx context.Context, r *Runner) Result {
	if r.assignmentID == "" {
		return Result{Status: "SKIP", Note: "no assignment"}
	}
	path := "/api/assignments/" + r.assignmentID
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup
	for range r.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.call(ctx, http.MethodGet, path, nil)
				if err != nil || status != http.StatusOK {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func (r *Runner) call(ctx context.Context, method, path string, body any) (int, []byte, time.Duration, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, &buf)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, time.Since(start), err
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	matches := createTableRe.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
