package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storyvote/internal/apperr"
	"storyvote/internal/config"

	"go.uber.org/zap"
)

var _ Gateway = (*YooKassaClient)(nil)

// YooKassaClient talks to the YooKassa v3 REST API.
type YooKassaClient struct {
	baseURL    string
	shopID     string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewYooKassaClient(cfg config.Payment, logger *zap.Logger) *YooKassaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YooKassaClient{
		baseURL:    strings.TrimSuffix(cfg.APIURL, "/"),
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("YooKassaClient"),
	}
}

type createPaymentBody struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

// apiError is the body YooKassa returns on failure.
type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (c *YooKassaClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	body := createPaymentBody{
		Amount:       Amount{Value: req.Amount.StringFixed(2), Currency: "RUB"},
		Capture:      true,
		Confirmation: Confirmation{Type: "redirect", ReturnURL: req.ReturnURL},
		Description:  req.Description,
		Metadata:     req.Metadata,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", req.IdempotenceKey)

	p, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if p.Confirmation == nil || p.Confirmation.ConfirmationURL == "" {
		c.logger.Error("Payment created without confirmation url", zap.String("paymentID", p.ID))
		return nil, fmt.Errorf("%w: no confirmation url in response", apperr.ErrGateway)
	}
	return p, nil
}

func (c *YooKassaClient) GetPayment(ctx context.Context, id string) (*Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment lookup request: %w", err)
	}
	return c.do(httpReq)
}

func (c *YooKassaClient) do(req *http.Request) (*Payment, error) {
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	log := c.logger.With(zap.String("method", req.Method), zap.String("path", req.URL.Path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("Gateway request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperr.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", apperr.ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		log.Warn("Gateway returned error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("code", ae.Code),
			zap.String("description", ae.Description),
		)
		if ae.Description != "" {
			return nil, fmt.Errorf("%w: %s", apperr.ErrGateway, ae.Description)
		}
		return nil, fmt.Errorf("%w: status %d", apperr.ErrGateway, resp.StatusCode)
	}

	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to decode gateway response", zap.Error(err))
		return nil, fmt.Errorf("%w: decode response: %v", apperr.ErrGateway, err)
	}
	return &p, nil
}
