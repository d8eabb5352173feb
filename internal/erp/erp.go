package erp

import (
	"context"
	"errors"

	"github.com/mesflow/backend/internal/models"
)

var (
	// ErrUpstream covers the gateway being unreachable, answering non-2xx,
	// or returning a payload that does not decode.
	ErrUpstream = errors.New("erp upstream failure")
	// ErrOrderNotFound is a 404 on a single-order fetch.
	ErrOrderNotFound = errors.New("production order not found")
)

// Gateway is the remote ERP API. It has no batch endpoint for arbitrary ID
// sets; the full-list fetch is the efficient path.
type Gateway interface {
	FetchOrders(ctx context.Context) ([]models.ProductionOrder, error)
	FetchOrder(ctx context.Context, orderNo string) (models.ProductionOrder, error)
}
