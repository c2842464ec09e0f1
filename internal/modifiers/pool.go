package modifiers

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Pool is the ordered, validated set of modifiers applied on every pricing pass.
type Pool struct {
	modifiers []Modifier
}

// NewPool validates every modifier up front and reports all problems at once.
func NewPool(mods ...Modifier) (*Pool, error) {
	var err error
	seen := make(map[string]int, len(mods))
	for i, mod := range mods {
		if mod == nil {
			err = multierr.Append(err, fmt.Errorf("modifier %d is nil", i))
			continue
		}
		id := strings.TrimSpace(mod.Identifier())
		if id == "" {
			err = multierr.Append(err, fmt.Errorf("modifier %d (%T) has no identifier", i, mod))
			continue
		}
		if prev, ok := seen[id]; ok {
			err = multierr.Append(err, fmt.Errorf("modifier %d duplicates identifier %q of modifier %d", i, id, prev))
			continue
		}
		seen[id] = i
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "invalid basket modifiers")
	}
	list := make([]Modifier, len(mods))
	copy(list, mods)
	return &Pool{modifiers: list}, nil
}

// Modifiers returns the registered modifiers in registration order.
func (p *Pool) Modifiers() []Modifier {
	if p == nil {
		return nil
	}
	return p.modifiers
}

// Get returns the modifier with the given identifier.
func (p *Pool) Get(identifier string) (Modifier, bool) {
	for _, mod := range p.Modifiers() {
		if mod.Identifier() == identifier {
			return mod, true
		}
	}
	return nil, false
}
