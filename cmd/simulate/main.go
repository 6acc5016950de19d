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
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-engine/internal/appointment"
	"github.com/hackgods/clinic-appointment-engine/internal/config"
	"github.com/hackgods/clinic-appointment-engine/internal/db"
	"github.com/hackgods/clinic-appointment-engine/internal/logging"
	"github.com/hackgods/clinic-appointment-engine/internal/policy"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	CompleteRatio float64
	ReadRatio     float64
	Days          int // how many days ahead to generate slots for
	HotSlots      int // slots every worker fights over
	PostgresDSN   string
	Location      *time.Location
}

// candidate is a booking that the slot policy accepts.
type candidate struct {
	ServiceID   uuid.UUID
	ClinicianID uuid.UUID
	RoomID      uuid.UUID
	Date        string
	Time        string
}

func (c candidate) key() string {
	return strings.Join([]string{c.ServiceID.String(), c.ClinicianID.String(), c.Date, c.Time}, "|")
}

type DataPool struct {
	Candidates   []candidate
	Clinicians   []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID

	bookedMu sync.Mutex
	booked   map[string]int // successful bookings per slot
}

func (dp *DataPool) AddAppointment(id uuid.UUID, c candidate) {
	dp.mu.Lock()
	dp.appointments = append(dp.appointments, id)
	dp.mu.Unlock()

	dp.bookedMu.Lock()
	dp.booked[c.key()]++
	dp.bookedMu.Unlock()
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeRejected
	outcomeError
)

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case outcomeRejected:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
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
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Booking         OperationMetrics
	Complete        OperationMetrics
	ReadByID        OperationMetrics
	ListByClinician OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	faker   *gofakeit.Faker
	fakerMu sync.Mutex
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel).With().Str("service", "simulate").Logger()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("complete", cfg.CompleteRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("candidates", len(dataPool.Candidates)).Int("clinicians", len(dataPool.Clinicians)).Msg("data loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		faker:  gofakeit.New(uint64(time.Now().UnixNano())),
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()

	if err := verifyNoDoubleBooking(context.Background(), pgPool); err != nil {
		logger.Error().Err(err).Msg("double booking detected")
		os.Exit(1)
	}
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.6),
		CompleteRatio: getFloat("SIM_COMPLETE_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		Days:          getInt("SIM_DAYS", 14),
		HotSlots:      getInt("SIM_HOT_SLOTS", 20),
		PostgresDSN:   base.PostgresDSN,
		Location:      base.ClinicLocation,
	}

	total := cfg.BookingRatio + cfg.CompleteRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CompleteRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

// loadDataPool builds bookings the policy accepts for active services and
// matching clinicians, then keeps a small hot set so workers collide.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	type svc struct {
		id       uuid.UUID
		category policy.Category
	}
	type clin struct {
		id   uuid.UUID
		role policy.Role
	}

	var services []svc
	rows, err := pool.Query(ctx, `SELECT id, name FROM services WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	for rows.Next() {
		var s appointment.ClinicService
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			rows.Close()
			return nil, err
		}
		services = append(services, svc{id: s.ID, category: s.Category()})
	}
	rows.Close()

	var clinicians []clin
	rows, err = pool.Query(ctx, `SELECT id, role FROM clinicians`)
	if err != nil {
		return nil, fmt.Errorf("load clinicians: %w", err)
	}
	for rows.Next() {
		var c appointment.Clinician
		if err := rows.Scan(&c.ID, &c.Role); err != nil {
			rows.Close()
			return nil, err
		}
		clinicians = append(clinicians, clin{id: c.ID, role: c.ScheduleRole()})
	}
	rows.Close()

	var rooms []uuid.UUID
	rows, err = pool.Query(ctx, `SELECT id FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		rooms = append(rooms, id)
	}
	rows.Close()

	if len(services) == 0 || len(clinicians) == 0 || len(rooms) == 0 {
		return nil, fmt.Errorf("no reference data loaded, run cmd/seed first")
	}

	table := policy.DefaultTable()
	dp := &DataPool{booked: map[string]int{}}
	for _, c := range clinicians {
		dp.Clinicians = append(dp.Clinicians, c.id)
	}

	today := time.Now().In(cfg.Location)
	for d := 1; d <= cfg.Days; d++ {
		day := time.Date(today.Year(), today.Month(), today.Day()+d, 0, 0, 0, 0, cfg.Location)
		for _, s := range services {
			p, ok := table.Lookup(s.category)
			if !ok {
				continue
			}
			w, ok := p.Window(day.Weekday())
			if !ok {
				continue
			}
			for _, c := range clinicians {
				if c.role != p.Role {
					continue
				}
				for _, at := range windowClocks(w) {
					dp.Candidates = append(dp.Candidates, candidate{
						ServiceID:   s.id,
						ClinicianID: c.id,
						RoomID:      rooms[len(dp.Candidates)%len(rooms)],
						Date:        day.Format(policy.DateLayout),
						Time:        at.String(),
					})
				}
			}
		}
	}

	if len(dp.Candidates) == 0 {
		return nil, fmt.Errorf("no bookable slots in the next %d days", cfg.Days)
	}

	rand.Shuffle(len(dp.Candidates), func(i, j int) {
		dp.Candidates[i], dp.Candidates[j] = dp.Candidates[j], dp.Candidates[i]
	})
	if cfg.HotSlots > 0 && cfg.HotSlots < len(dp.Candidates) {
		dp.Candidates = dp.Candidates[:cfg.HotSlots]
	}

	return dp, nil
}

func windowClocks(w policy.Window) []policy.Clock {
	var out []policy.Clock
	for h := w.StartHour; h <= w.EndHour; h++ {
		for _, m := range w.Minutes {
			c := policy.Clock{Hour: h, Minute: m}
			if w.Allows(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CompleteRatio:
				s.doComplete(ctx, rng)
			case rng.Intn(2) == 0:
				s.doReadByID(ctx, rng)
			default:
				s.doListByClinician(ctx, rng)
			}
		}
	}
}

func (s *Simulator) patient() (doc, given, family string) {
	s.fakerMu.Lock()
	defer s.fakerMu.Unlock()
	return s.faker.Numerify("##########"), lettersOnly(s.faker.FirstName()), lettersOnly(s.faker.LastName())
}

func lettersOnly(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == ' ' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Paciente"
	}
	return b.String()
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Candidates[rng.Intn(len(s.pool.Candidates))]
	doc, given, family := s.patient()

	body, _ := json.Marshal(appointment.CreateRequest{
		DocumentID:        doc,
		PatientGivenName:  given,
		PatientFamilyName: family,
		ServiceID:         c.ServiceID.String(),
		ClinicianID:       c.ClinicianID.String(),
		RoomID:            c.RoomID.String(),
		Date:              c.Date,
		Time:              c.Time,
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Booking.Record(latency, outcomeError)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if json.NewDecoder(resp.Body).Decode(&created) == nil && created.ID != uuid.Nil {
			s.pool.AddAppointment(created.ID, c)
		}
		s.metrics.Booking.Record(latency, outcomeSuccess)
	case http.StatusBadRequest:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "slot_already_booked" || e.Error == "slot_being_booked" {
			s.metrics.Booking.Record(latency, outcomeConflict)
		} else {
			s.metrics.Booking.Record(latency, outcomeRejected)
		}
	default:
		s.metrics.Booking.Record(latency, outcomeError)
	}
}

func (s *Simulator) doComplete(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPatch,
		fmt.Sprintf("%s/appointments/%s/complete", s.config.APIBaseURL, apptID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Complete.Record(latency, outcomeError)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		s.metrics.Complete.Record(latency, outcomeSuccess)
	case http.StatusConflict:
		s.metrics.Complete.Record(latency, outcomeConflict)
	default:
		s.metrics.Complete.Record(latency, outcomeError)
	}
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	s.doGet(ctx, &s.metrics.ReadByID, fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID))
}

func (s *Simulator) doListByClinician(ctx context.Context, rng *rand.Rand) {
	clinicianID := s.pool.Clinicians[rng.Intn(len(s.pool.Clinicians))]
	s.doGet(ctx, &s.metrics.ListByClinician, fmt.Sprintf("%s/appointments?clinician_id=%s", s.config.APIBaseURL, clinicianID))
}

func (s *Simulator) doGet(ctx context.Context, om *OperationMetrics, url string) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		om.Record(latency, outcomeError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		om.Record(latency, outcomeSuccess)
	} else {
		om.Record(latency, outcomeError)
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Hot slots: %d\n", len(s.pool.Candidates))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Complete", &s.metrics.Complete)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Clinician", &s.metrics.ListByClinician)

	s.pool.bookedMu.Lock()
	defer s.pool.bookedMu.Unlock()
	doubles := 0
	for _, n := range s.pool.booked {
		if n > 1 {
			doubles++
		}
	}
	fmt.Printf("Slots booked: %d, slots with more than one 201: %d\n", len(s.pool.booked), doubles)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	rejected := atomic.LoadInt64(&om.Rejected)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, pct(rejected))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// verifyNoDoubleBooking asks the store directly, independent of the API.
func verifyNoDoubleBooking(ctx context.Context, pool *pgxpool.Pool) error {
	var dupes int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT 1
			FROM appointments
			GROUP BY service_id, clinician_id, slot_date, slot_time
			HAVING count(*) > 1
		) d
	`).Scan(&dupes)
	if err != nil {
		return fmt.Errorf("count duplicate slots: %w", err)
	}
	if dupes > 0 {
		return fmt.Errorf("%d slots hold more than one appointment", dupes)
	}
	fmt.Println("Store check: no slot holds more than one appointment")
	return nil
}

// Helper functions

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
