package provider

import (
	"context"
	"errors"

	"gpu_sniper/internal/model"
)

// ErrTransport marks a network level failure a Vendor chose to surface
// instead of swallowing. Workers that receive an error wrapping it restart
// their buy cycle from stock checking. nvidia.Client never returns it: it
// reports the failure to its StatusObserver and reads it as out of stock.
var ErrTransport = errors.New("transport error")

// StatusObserver is told when a call suggests the store API went up or down.
type StatusObserver interface {
	ObserveAPIStatus(ctx context.Context, status model.APIStatus)
}

// Vendor is the store seen by a worker. Response shape problems are never
// errors: they degrade to false. Implementations return an error only for
// cancellation or an error wrapping ErrTransport.
type Vendor interface {
	Name() string
	CheckStock(ctx context.Context, target model.ProductTarget) (bool, error)
	AddToCart(ctx context.Context, target model.ProductTarget) (bool, error)
}
