package service

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"homeservices/internal/models"

	"github.com/google/uuid"
)

const DefaultSuccessRate = 0.95

// MockGateway approves a charge with a fixed probability.
type MockGateway struct {
	successRate float64
	mu          sync.Mutex
	rng         func() float64
}

func NewMockGateway(successRate float64) *MockGateway {
	if successRate <= 0 || successRate > 1 {
		successRate = DefaultSuccessRate
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &MockGateway{successRate: successRate, rng: r.Float64}
}

// WithRand replaces the random source, mainly for tests.
func (g *MockGateway) WithRand(rng func() float64) *MockGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = rng
	return g
}

func (g *MockGateway) CreateOrder(_ context.Context, _ int64, _ float64) (string, error) {
	return "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

func (g *MockGateway) Charge(ctx context.Context, _ *models.Payment, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng() < g.successRate, nil
}

// NewTransactionID returns a gateway-style id: TXN_ followed by 12 uppercase hex characters.
func NewTransactionID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN_" + strings.ToUpper(id[:12])
}
