// Package refund routes refunds to the processor that captured the original
// contribution.
package refund

import (
	"errors"
	"strings"

	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"go.uber.org/fx"
)

var ErrProcessorNotFound = errors.New("refund_processor_not_found")

type Registry struct {
	processors map[string]gateway.RefundProcessor
}

type RegistryParams struct {
	fx.In

	Processors []gateway.RefundProcessor `group:"refund_processors"`
}

func NewRegistry(processors ...gateway.RefundProcessor) *Registry {
	registry := &Registry{processors: map[string]gateway.RefundProcessor{}}
	for _, processor := range processors {
		if processor == nil {
			continue
		}
		provider := normalize(processor.Provider())
		if provider == "" {
			continue
		}
		registry.processors[provider] = processor
	}
	return registry
}

func ProvideRegistry(p RegistryParams) *Registry {
	return NewRegistry(p.Processors...)
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.processors[normalize(provider)]
	return ok
}

func (r *Registry) Processor(provider string) (gateway.RefundProcessor, error) {
	if r == nil {
		return nil, ErrProcessorNotFound
	}
	processor, ok := r.processors[normalize(provider)]
	if !ok {
		return nil, ErrProcessorNotFound
	}
	return processor, nil
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
