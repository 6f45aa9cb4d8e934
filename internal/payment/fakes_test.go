package payment

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type fakeGateway struct {
	mu       sync.Mutex
	created  []CreatePaymentRequest
	payments map[string]*Payment
	err      error
}

func (g *fakeGateway) CreatePayment(_ context.Context, req CreatePaymentRequest) (*Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, req)
	id := "pay-" + req.IdempotenceKey
	return &Payment{
		ID:           id,
		Status:       StatusPending,
		Confirmation: &Confirmation{Type: "redirect", ConfirmationURL: "https://pay.example/" + id},
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.payments[id]
	if !ok {
		return &Payment{ID: id, Status: StatusPending}, nil
	}
	return p, nil
}

type memoryCache struct {
	mu sync.Mutex
	m  map[string]*Intent
}

func (c *memoryCache) Get(_ context.Context, key string) (*Intent, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in, ok := c.m[key]
	return in, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, in *Intent, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]*Intent{}
	}
	c.m[key] = in
	return nil
}

func succeededBody(id string, metadata string) []byte {
	body := map[string]any{
		"type":  "notification",
		"event": EventPaymentSucceeded,
		"object": map[string]any{
			"id":       id,
			"status":   StatusSucceeded,
			"amount":   map[string]string{"value": "100.00", "currency": "RUB"},
			"metadata": json.RawMessage(metadata),
		},
	}
	b, _ := json.Marshal(body)
	return b
}
