package instanceid

import (
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Provider hands out the identifier of the current instance.
//
// The zero value is not usable, use New.
type Provider struct {
	configured string
	clock      clock.Clock

	once sync.Once
	id   *atomic.String
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock sets the clock used to stamp generated identifiers.
func WithClock(c clock.Clock) Option {
	return func(p *Provider) {
		p.clock = c
	}
}

// New returns a Provider that prefers the configured identifier. A blank
// configured value makes Initialize generate one.
func New(configured string, opts ...Option) *Provider {
	p := &Provider{
		configured: configured,
		clock:      clock.New(),
		id:         atomic.NewString(""),
	}

	for _, o := range opts {
		o(p)
	}

	return p
}

// Initialize assigns the identifier. Only the first call has an effect.
func (p *Provider) Initialize() {
	p.once.Do(func() {
		if strings.TrimSpace(p.configured) != "" {
			p.id.Store(p.configured)
			return
		}

		p.id.Store(Generate(p.clock))
	})
}

// ID returns the identifier and whether Initialize already ran.
func (p *Provider) ID() (string, bool) {
	id := p.id.Load()

	return id, id != ""
}

// Generate builds a "<unix-millis>-<uuid>" identifier.
func Generate(c clock.Clock) string {
	return fmt.Sprintf("%d-%s", c.Now().UnixMilli(), uuid.NewString())
}

// Compare orders identifiers. It is plain lexicographic byte order and must
// stay that way: replicas built from other code bases rely on it.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}
