package predicate

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/devblac/chain-sentry/internal/event"
)

// Builder constructs predicate configs fluently. Build is the one
// fail-fast boundary: it validates and refuses to hand out a broken config.
type Builder struct {
	cfg Config
}

// NewBuilder starts from the same defaults as New.
func NewBuilder() *Builder {
	return &Builder{cfg: New()}
}

func (b *Builder) WithID(id string) *Builder {
	b.cfg.ID = id
	return b
}

func (b *Builder) WithName(name string) *Builder {
	b.cfg.Name = name
	return b
}

func (b *Builder) WithNetwork(n Network) *Builder {
	b.cfg.Network = n
	return b
}

func (b *Builder) WithContractAddress(addr string) *Builder {
	b.cfg.ContractAddress = addr
	return b
}

func (b *Builder) WithEventType(t event.Type) *Builder {
	b.cfg.EventType = t
	return b
}

func (b *Builder) WithFunctionName(fn string) *Builder {
	b.cfg.Filters.FunctionName = fn
	return b
}

func (b *Builder) WithSender(sender string) *Builder {
	b.cfg.Filters.Sender = sender
	return b
}

func (b *Builder) WithRecipient(recipient string) *Builder {
	b.cfg.Filters.Recipient = recipient
	return b
}

func (b *Builder) WithMinAmount(amount *big.Int) *Builder {
	b.cfg.Filters.MinAmount = amount
	return b
}

func (b *Builder) WithActions(actions ...string) *Builder {
	b.cfg.Actions = actions
	return b
}

func (b *Builder) Enabled(enabled bool) *Builder {
	b.cfg.Enabled = enabled
	return b
}

// Build validates the assembled config and returns it, or an error naming
// every violation.
func (b *Builder) Build() (Config, error) {
	res := Validate(b.cfg)
	if !res.Valid {
		return Config{}, fmt.Errorf("invalid predicate: %s", strings.Join(res.Errors, "; "))
	}
	return b.cfg, nil
}
