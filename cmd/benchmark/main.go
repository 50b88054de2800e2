package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	issued        uint64 // success with a code
	issueFailed   uint64 // success=false but an intent was created: code issuance ran out of attempts
	failOther     uint64 // validation or creation failures
	transportErr  uint64

	latencyMu sync.Mutex
	latencies []time.Duration
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "steady", "Workload type: steady | burst")
}

type initiateResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	OTP       string `json:"otp"`
	PaymentID string `json:"payment_id"`
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, i)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time, id int) {
	defer wg.Done()
	client := &http.Client{Timeout: 10 * time.Second}

	for n := 0; time.Since(start) < duration; n++ {
		// Burst: roughly a third of iterations fire a second request alongside the first.
		if workload == "burst" && rand.Float32() < 0.3 {
			var burst sync.WaitGroup
			burst.Add(1)
			go func() {
				defer burst.Done()
				pay(client, id, n)
			}()
			pay(client, id, n)
			burst.Wait()
			continue
		}
		pay(client, id, n)
	}
}

func pay(client *http.Client, worker, n int) {
	payload := map[string]interface{}{
		"card_number": "4111111111111111",
		"expiry":      "12/25",
		"cvv":         "123",
		"holder_name": fmt.Sprintf("Test User %d-%d", worker, n),
		"amount":      10 + rand.Float64()*990,
		"currency":    "USD",
		"merchant_id": fmt.Sprintf("merchant_%d", worker%10),
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", targetURL+"/api/v1/payments", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	begin := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(begin)

	atomic.AddUint64(&totalRequests, 1)
	latencyMu.Lock()
	latencies = append(latencies, elapsed)
	latencyMu.Unlock()

	if err != nil {
		atomic.AddUint64(&transportErr, 1)
		return
	}
	defer resp.Body.Close()

	var out initiateResponse
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&out) != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	switch {
	case out.Success && out.OTP != "":
		atomic.AddUint64(&issued, 1)
	case !out.Success && out.PaymentID != "":
		atomic.AddUint64(&issueFailed, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func percentile(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return float64(sorted[idx]) / float64(time.Millisecond)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&issued)
	fIssue := atomic.LoadUint64(&issueFailed)
	fOther := atomic.LoadUint64(&failOther)
	fErr := atomic.LoadUint64(&transportErr)

	latencyMu.Lock()
	sorted := append([]time.Duration(nil), latencies...)
	latencyMu.Unlock()
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	var avg, successRate float64
	if len(sorted) > 0 {
		avg = float64(sum) / float64(len(sorted)) / float64(time.Millisecond)
	}
	if total > 0 {
		successRate = float64(ok) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":             workload,
		"duration_sec":         d.Seconds(),
		"total_requests":       total,
		"throughput_rps":       float64(total) / d.Seconds(),
		"codes_issued":         ok,
		"issuance_failures":    fIssue,
		"other_failures":       fOther,
		"errors":               fErr,
		"issuance_success_pct": successRate,
		"avg_latency_ms":       avg,
		"p95_latency_ms":       percentile(sorted, 0.95),
		"p99_latency_ms":       percentile(sorted, 0.99),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
