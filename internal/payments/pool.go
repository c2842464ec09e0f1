package payments

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/identity"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Pool is the ordered set of configured payment methods.
type Pool struct {
	methods []PaymentMethod
}

// NewPool validates every method up front and reports all problems together.
func NewPool(methods ...PaymentMethod) (*Pool, error) {
	var errs error
	seen := make(map[string]int, len(methods))
	for i, method := range methods {
		if method == nil {
			errs = multierr.Append(errs, fmt.Errorf("payment method %d is nil", i))
			continue
		}
		id := strings.TrimSpace(method.Identifier())
		if id == "" {
			errs = multierr.Append(errs, fmt.Errorf("payment method %d has no identifier", i))
		} else if prev, ok := seen[id]; ok {
			errs = multierr.Append(errs, fmt.Errorf("payment method %d duplicates identifier %q of method %d", i, id, prev))
		} else {
			seen[id] = i
		}
		if strings.TrimSpace(method.Label()) == "" {
			errs = multierr.Append(errs, fmt.Errorf("payment method %q has no label", id))
		}
	}
	if errs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, errs, "invalid payment methods")
	}
	return &Pool{methods: append([]PaymentMethod(nil), methods...)}, nil
}

// Payments lists methods supporting kind. When ctx carries a caller identity
// disabled methods are dropped.
func (p *Pool) Payments(ctx context.Context, kind Kind) []PaymentMethod {
	if p == nil {
		return nil
	}
	_, hasCaller := identity.FromContext(ctx)
	out := make([]PaymentMethod, 0, len(p.methods))
	for _, method := range p.methods {
		if !Supports(method, kind) {
			continue
		}
		if hasCaller && !Enabled(ctx, method) {
			continue
		}
		out = append(out, method)
	}
	return out
}

// Get returns the method with identifier among Payments(ctx, kind).
func (p *Pool) Get(ctx context.Context, identifier string, kind Kind) (PaymentMethod, bool) {
	for _, method := range p.Payments(ctx, kind) {
		if method.Identifier() == identifier {
			return method, true
		}
	}
	return nil, false
}

// Lookup finds a registered method by identifier alone, regardless of kind
// or caller eligibility. Refunds resolve stored payments this way.
func (p *Pool) Lookup(identifier string) (PaymentMethod, bool) {
	if p == nil {
		return nil, false
	}
	for _, method := range p.methods {
		if method.Identifier() == identifier {
			return method, true
		}
	}
	return nil, false
}
