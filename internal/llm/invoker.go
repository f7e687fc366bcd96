package llm

import (
	"context"
	"fmt"
	"log"

	"docsift/internal/domain"
	"docsift/internal/port"
)

// Invoker issues completion calls and validates the output against a
// registered schema. A response that fails validation triggers a fresh,
// identical call up to the configured retry count. Transport errors from
// the completer pass through untouched; the completion client already
// retried them.
type Invoker struct {
	completer      port.Completer
	registry       *Registry
	defaultRetries int
}

// NewInvoker creates an Invoker. defaultRetries applies when a prompt
// config does not set its own validation retry count.
func NewInvoker(completer port.Completer, registry *Registry, defaultRetries int) *Invoker {
	return &Invoker{
		completer:      completer,
		registry:       registry,
		defaultRetries: defaultRetries,
	}
}

// Invoke runs one validated completion. retries < 0 selects the default.
func (i *Invoker) Invoke(ctx context.Context, in port.CompletionInput, schema string, retries int) (interface{}, error) {
	decode, err := i.registry.Get(schema)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		retries = i.defaultRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := i.completer.Complete(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("completion call: %w", err)
		}

		out, err := decode(raw)
		if err == nil {
			return out, nil
		}
		lastErr = &domain.ValidationError{Schema: schema, Err: err}
		log.Printf("llm.Invoke: attempt %d/%d failed validation for schema %s: %v",
			attempt+1, retries+1, schema, err)
	}

	return nil, lastErr
}
