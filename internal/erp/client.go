package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mesflow/backend/internal/models"
)

// HTTPGateway talks to the ERP over its REST API with a bearer token.
// Every request carries a bounded timeout; the ERP has no availability SLA.
type HTTPGateway struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (g *HTTPGateway) do(ctx context.Context, path string) (*http.Response, error) {
	client := g.Client
	if client == nil {
		timeout := 15 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
				timeout = remaining
			}
		}
		client = &http.Client{Timeout: timeout}
	}

	url := strings.TrimRight(g.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp, nil
}

func (g *HTTPGateway) FetchOrders(ctx context.Context) ([]models.ProductionOrder, error) {
	resp, err := g.do(ctx, "/production-orders")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %s", ErrUpstream, resp.Status)
	}

	var orders []models.ProductionOrder
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return orders, nil
}

func (g *HTTPGateway) FetchOrder(ctx context.Context, orderNo string) (models.ProductionOrder, error) {
	resp, err := g.do(ctx, "/production-orders/"+orderNo)
	if err != nil {
		return models.ProductionOrder{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ProductionOrder{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNo)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ProductionOrder{}, fmt.Errorf("%w: http %s", ErrUpstream, resp.Status)
	}

	var order models.ProductionOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return models.ProductionOrder{}, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return order, nil
}
