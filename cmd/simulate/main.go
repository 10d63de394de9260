package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/api"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/logging"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	Patients   int
	Days       int
	ReadRatio  float64
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Reserve      OperationMetrics
	Schedule     OperationMetrics
	Appointments OperationMetrics
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	logger   zerolog.Logger
	tokens   []string
	vaccines []string
	dates    []string
	metrics  Metrics

	// reservation outcomes keyed by error kind
	outcomes sync.Map
}

func main() {
	logger := logging.Init("simulate", getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("patients", cfg.Patients).
		Float64("read_ratio", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := sim.Prepare(ctx); err != nil {
		logger.Fatal().Err(err).Msg("prepare simulation")
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:   getDuration("SIM_DURATION", 30*time.Second),
		Workers:    getInt("SIM_WORKERS", 10),
		Patients:   getInt("SIM_PATIENTS", 50),
		Days:       getInt("SIM_DAYS", 14),
		ReadRatio:  getFloat("SIM_READ_RATIO", 0.3),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.ReadRatio < 0 || cfg.ReadRatio > 1 {
		return fmt.Errorf("SIM_READ_RATIO must be within [0, 1]")
	}
	return nil
}

// Prepare registers and logs in the simulated patients, then learns the
// stocked vaccines from the schedule endpoint.
func (s *Simulator) Prepare(ctx context.Context) error {
	gofakeit.Seed(time.Now().UnixNano())

	for len(s.tokens) < s.config.Patients {
		username := "sim-" + gofakeit.Username() + "-" + strconv.Itoa(gofakeit.Number(1000, 9999))
		password := gofakeit.Password(true, true, true, false, false, 12)

		status, err := s.post(ctx, "", "/patients", api.CredentialsRequest{Username: username, Password: password}, nil)
		if err != nil {
			return err
		}
		if status == http.StatusConflict {
			continue
		}
		if status != http.StatusCreated {
			return fmt.Errorf("register patient: status %d", status)
		}

		var sess api.SessionResponse
		status, err = s.post(ctx, "", "/sessions", api.LoginRequest{Role: "patient", Username: username, Password: password}, &sess)
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("login patient: status %d", status)
		}
		s.tokens = append(s.tokens, sess.Token)
	}

	today := time.Now().UTC()
	for d := 0; d < s.config.Days; d++ {
		s.dates = append(s.dates, scheduling.FormatDate(today.AddDate(0, 0, d)))
	}

	var sched api.ScheduleResponse
	if status, err := s.get(ctx, s.tokens[0], "/schedule?date="+s.dates[0], &sched); err != nil || status != http.StatusOK {
		return fmt.Errorf("load schedule: status %d: %v", status, err)
	}
	for _, v := range sched.Vaccines {
		s.vaccines = append(s.vaccines, v.Name)
	}
	if len(s.vaccines) == 0 {
		return fmt.Errorf("no vaccines stocked, run the seed first")
	}

	s.logger.Info().
		Int("patients", len(s.tokens)).
		Strs("vaccines", s.vaccines).
		Msg("simulation prepared")
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		token := s.tokens[rng.Intn(len(s.tokens))]
		date := s.dates[rng.Intn(len(s.dates))]

		if rng.Float64() >= s.config.ReadRatio {
			s.doReserve(ctx, token, date, s.vaccines[rng.Intn(len(s.vaccines))])
			continue
		}
		if rng.Intn(2) == 0 {
			s.doRead(ctx, &s.metrics.Schedule, token, "/schedule?date="+date)
		} else {
			s.doRead(ctx, &s.metrics.Appointments, token, "/appointments")
		}
	}
}

func (s *Simulator) doReserve(ctx context.Context, token, date, vaccine string) {
	start := time.Now()

	var errResp api.ErrorResponse
	status, err := s.post(ctx, token, "/reservations", api.ReserveRequest{Date: date, Vaccine: vaccine}, &errResp)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success := err == nil && status == http.StatusCreated
	conflict := err == nil && status == http.StatusConflict
	s.metrics.Reserve.Record(latency, success, conflict)

	outcome := "OK"
	switch {
	case err != nil:
		outcome = "TRANSPORT_ERROR"
	case !success:
		outcome = errResp.Error
	}
	counter, _ := s.outcomes.LoadOrStore(outcome, new(int64))
	atomic.AddInt64(counter.(*int64), 1)
}

func (s *Simulator) doRead(ctx context.Context, om *OperationMetrics, token, path string) {
	start := time.Now()
	status, err := s.get(ctx, token, path, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}
	om.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) post(ctx context.Context, token, path string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token, out)
}

func (s *Simulator) get(ctx context.Context, token, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	return s.do(req, token, out)
}

func (s *Simulator) do(req *http.Request, token string, out any) (int, error) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Patients: %d\n", len(s.tokens))
	fmt.Println()

	printOperationReport("Reserve", &s.metrics.Reserve)
	printOperationReport("Search schedule", &s.metrics.Schedule)
	printOperationReport("Show appointments", &s.metrics.Appointments)

	fmt.Println("Reserve outcomes:")
	var keys []string
	s.outcomes.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := s.outcomes.Load(k)
		fmt.Printf("  %-24s %d\n", k, atomic.LoadInt64(v.(*int64)))
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
