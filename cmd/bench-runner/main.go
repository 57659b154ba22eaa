package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orna-ly/orna.ly-sub000/internal/order/api"
	"github.com/orna-ly/orna.ly-sub000/internal/order/domain"
)

// benchResult reports latency figures and whether the service sold more units
// than the stock it started with.
type benchResult struct {
	Timestamp          string         `json:"timestamp"`
	BaseURL            string         `json:"base_url"`
	ProductID          string         `json:"product_id"`
	InitialStock       int            `json:"initial_stock"`
	QuantityPerOrder   int            `json:"quantity_per_order"`
	TotalRequests      int            `json:"total_requests"`
	Concurrency        int            `json:"concurrency"`
	SuccessfulRequests int            `json:"successful_requests"`
	ReplayedRequests   int            `json:"replayed_requests"`
	ErrorRequests      int            `json:"error_requests"`
	UnitsCommitted     int            `json:"units_committed"`
	Oversold           bool           `json:"oversold"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgLatencyMs       float64        `json:"avg_latency_ms"`
	MinLatencyMs       float64        `json:"min_latency_ms"`
	MaxLatencyMs       float64        `json:"max_latency_ms"`
	P50LatencyMs       float64        `json:"p50_latency_ms"`
	P90LatencyMs       float64        `json:"p90_latency_ms"`
	P95LatencyMs       float64        `json:"p95_latency_ms"`
	P99LatencyMs       float64        `json:"p99_latency_ms"`
	ThroughputRPS      float64        `json:"throughput_rps"`
	StatusCounts       map[string]int `json:"status_counts"`
	ErrorClasses       map[string]int `json:"error_classes"`
	FirstError         string         `json:"first_error"`
}

type metrics struct {
	mu           sync.Mutex
	productID    domain.ProductID
	success      int
	replayed     int
	errors       int
	units        int
	orders       map[domain.OrderID]struct{}
	total        time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration
	latenciesMs  []float64
	statusCounts map[string]int
	errorClasses map[string]int
	firstError   string
}

func newMetrics(productID domain.ProductID) *metrics {
	return &metrics{
		productID:    productID,
		orders:       make(map[domain.OrderID]struct{}),
		statusCounts: make(map[string]int),
		errorClasses: make(map[string]int),
	}
}

func (m *metrics) record(latency time.Duration, res api.PlaceResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCounts[strconv.Itoa(res.Status)]++
	if err != nil {
		m.errors++
		m.errorClasses[classifyError(err)]++
		if m.firstError == "" {
			m.firstError = err.Error()
		}
		return
	}
	if res.Replayed {
		m.replayed++
	}
	// replays return an order that was already counted
	if _, seen := m.orders[res.Order.ID]; !seen {
		m.orders[res.Order.ID] = struct{}{}
		m.units += res.Order.Quantity(m.productID)
	}
	m.success++
	m.total += latency
	if m.minLatency == 0 || latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.latenciesMs = append(m.latenciesMs, float64(latency.Milliseconds()))
}

func main() {
	baseURL := flag.String("base-url", getenv("ORDER_BASE_URL", "http://localhost:8080"), "order-service base URL")
	productID := flag.String("product", "ring-001", "product id every order buys")
	price := flag.String("price", "100.00", "current catalog price of the product")
	stock := flag.Int("stock", 5, "stock of the product when the run starts")
	quantity := flag.Int("quantity", 1, "units per order")
	total := flag.Int("total", 100, "total number of orders to submit")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	replayEvery := flag.Int("replay-every", 0, "resend every Nth request with the previous idempotency key; 0 disables")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	output := flag.String("output", "", "optional output path for JSON result")
	flag.Parse()

	if *total <= 0 || *concurrency <= 0 || *quantity <= 0 {
		fmt.Fprintln(os.Stderr, "total, concurrency and quantity must be > 0")
		os.Exit(1)
	}
	unitPrice, err := decimal.NewFromString(*price)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid price: %v\n", err)
		os.Exit(1)
	}

	req := buildRequest(domain.ProductID(*productID), unitPrice, *quantity)
	client := api.NewClient(*baseURL, *timeout)
	keys := idempotencyKeys(*total, *replayEvery)

	tasks := make(chan string)
	var wg sync.WaitGroup
	m := newMetrics(domain.ProductID(*productID))

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range tasks {
				ctx, cancel := context.WithTimeout(context.Background(), *timeout)
				t0 := time.Now()
				res, err := client.PlaceOrder(ctx, req, key)
				cancel()
				m.record(time.Since(t0), res, err)
			}
		}()
	}
	for _, key := range keys {
		tasks <- key
	}
	close(tasks)
	wg.Wait()

	duration := time.Since(start)
	avgLatency, minLatency, maxLatency := 0.0, 0.0, 0.0
	if m.success > 0 {
		avgLatency = float64(m.total.Milliseconds()) / float64(m.success)
		minLatency = float64(m.minLatency.Milliseconds())
		maxLatency = float64(m.maxLatency.Milliseconds())
	}
	p50, p90, p95, p99 := calcPercentiles(m.latenciesMs)

	result := benchResult{
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		BaseURL:            *baseURL,
		ProductID:          *productID,
		InitialStock:       *stock,
		QuantityPerOrder:   *quantity,
		TotalRequests:      *total,
		Concurrency:        *concurrency,
		SuccessfulRequests: m.success,
		ReplayedRequests:   m.replayed,
		ErrorRequests:      m.errors,
		UnitsCommitted:     m.units,
		Oversold:           m.units > *stock,
		DurationSeconds:    duration.Seconds(),
		AvgLatencyMs:       avgLatency,
		MinLatencyMs:       minLatency,
		MaxLatencyMs:       maxLatency,
		P50LatencyMs:       p50,
		P90LatencyMs:       p90,
		P95LatencyMs:       p95,
		P99LatencyMs:       p99,
		ThroughputRPS:      float64(m.success) / duration.Seconds(),
		StatusCounts:       m.statusCounts,
		ErrorClasses:       m.errorClasses,
		FirstError:         m.firstError,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		if err := writeJSON(*output, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
			os.Exit(1)
		}
	}
	if result.Oversold {
		fmt.Fprintf(os.Stderr, "oversold: committed %d units against stock %d\n", m.units, *stock)
		os.Exit(2)
	}
}

func buildRequest(id domain.ProductID, unitPrice decimal.Decimal, qty int) domain.OrderRequest {
	line := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	return domain.OrderRequest{
		CustomerName:    "Bench Runner",
		CustomerPhone:   "+15550100",
		ShippingAddress: domain.ShippingAddress{Address: "1 Bench St", City: "Loadville"},
		PaymentMethod:   "card",
		TotalAmount:     line,
		Items: []domain.LineItem{
			{ProductID: id, Quantity: qty, UnitPrice: unitPrice, TotalPrice: line},
		},
	}
}

// idempotencyKeys returns one key per request. With replayEvery > 0 every Nth
// request reuses the key before it.
func idempotencyKeys(total, replayEvery int) []string {
	keys := make([]string, 0, total)
	for i := 0; i < total; i++ {
		if replayEvery > 0 && i > 0 && (i+1)%replayEvery == 0 {
			keys = append(keys, keys[i-1])
			continue
		}
		keys = append(keys, uuid.NewString())
	}
	return keys
}

func classifyError(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 400 && strings.ToUpper(apiErr.Code) == apiErr.Code:
			return "business_rejected:" + apiErr.Code
		case apiErr.Status == 429:
			return "rate_limited"
		case apiErr.Status >= 500:
			return "http_5xx"
		case apiErr.Status >= 400:
			return "http_4xx"
		}
	}
	return "transport"
}

func writeJSON(path string, result benchResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func calcPercentiles(values []float64) (float64, float64, float64, float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sort.Float64s(values)
	return percentile(values, 0.50), percentile(values, 0.90), percentile(values, 0.95), percentile(values, 0.99)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
