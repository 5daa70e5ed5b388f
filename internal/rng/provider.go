// Package rng implements the randomness provider: the context state machine
// and the generation engine that sources bytes from the QRNG through
// internal/entropy.
package rng

import (
	"github.com/hashicorp/go-hclog"

	"github.com/ArowuTest/qrng-bridge/internal/entropy"
)

// Parameter names reported by GettableParams.
const (
	ParamMaxRequest = "max_request"
	ParamStrength   = "strength"
	ParamState      = "state"
)

// Params is the answer to a parameter query on a context.
type Params struct {
	MaxRequestSize int   `json:"max_request"`
	StrengthBits   uint  `json:"strength"`
	State          State `json:"state"`
}

// Provider is the host-facing randomness provider.
type Provider struct {
	cfg    entropy.Config
	engine *Engine
	logger hclog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the diagnostic logger.
func WithLogger(l hclog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithScratch replaces the allocator for mixing buffers.
func WithScratch(s Scratch) Option {
	return func(p *Provider) { p.engine.scratch = s }
}

// NewProvider binds a provider to adapter, whose configuration it adopts.
func NewProvider(adapter *entropy.Adapter, opts ...Option) *Provider {
	cfg := adapter.Config()
	p := &Provider{
		cfg:    cfg,
		logger: hclog.NewNullLogger(),
		engine: &Engine{
			adapter:    adapter,
			mix:        cfg.MixWithFallback,
			maxRequest: cfg.MaxRequestSize,
			scratch:    heapScratch{},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.engine.logger = p.logger
	return p
}

// Config returns the device configuration.
func (p *Provider) Config() entropy.Config {
	return p.cfg
}

// Engine exposes the generation engine.
func (p *Provider) Engine() *Engine {
	return p.engine
}

// NewContext returns a context in StateUninitialised. When the configuration
// asks for it, the context already owns a lock.
func (p *Provider) NewContext() *Context {
	return newContext(p.cfg.Locking, p.cfg.LockOnCreate)
}

// FreeContext tears the context down from any state. Later calls on it
// fail with ErrContextFreed.
func (p *Provider) FreeContext(ctx *Context) {
	if ctx == nil {
		return
	}
	ctx.free()
}

// Instantiate moves ctx to StateReady. Instantiating a ready context is
// accepted. The personalization string is not used.
func (p *Provider) Instantiate(ctx *Context, strength uint, predictionResistance bool, personalization []byte) error {
	if ctx == nil {
		return ErrNilContext
	}
	if ctx.Freed() {
		return ErrContextFreed
	}
	p.logger.Debug("instantiating context",
		"kind", p.cfg.SourceKind.String(),
		"index", p.cfg.DeviceIndex,
		"strategy", p.cfg.ReadStrategy.String(),
		"mix", p.cfg.MixWithFallback)
	ctx.setState(StateReady)
	return nil
}

// Uninstantiate moves ctx back to StateUninitialised.
func (p *Provider) Uninstantiate(ctx *Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if ctx.Freed() {
		return ErrContextFreed
	}
	ctx.setState(StateUninitialised)
	return nil
}

// Generate fills out from the configured source. See Engine.Generate.
func (p *Provider) Generate(ctx *Context, out []byte, strength uint, predictionResistance bool, additionalInput []byte) (Result, error) {
	return p.engine.Generate(ctx, out, strength, predictionResistance, additionalInput)
}

// EnableLocking creates the context lock if locking is configured. It is
// safe to call repeatedly, and a no-op when locking is disabled.
func (p *Provider) EnableLocking(ctx *Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if ctx.Freed() {
		return ErrContextFreed
	}
	ctx.ensureLock()
	return nil
}

// Lock acquires exclusive access to ctx. It fails when no lock exists.
func (p *Provider) Lock(ctx *Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return ctx.acquire()
}

// Unlock releases ctx. It does nothing if there is no lock to release.
func (p *Provider) Unlock(ctx *Context) {
	if ctx == nil {
		return
	}
	ctx.release()
}

// GettableParams lists the parameters Params reports.
func (p *Provider) GettableParams() []string {
	return []string{ParamMaxRequest, ParamStrength, ParamState}
}

// Params reports the maximum request size, the advertised strength and the
// state of ctx.
func (p *Provider) Params(ctx *Context) (Params, error) {
	if ctx == nil {
		return Params{}, ErrNilContext
	}
	return Params{
		MaxRequestSize: p.cfg.MaxRequestSize,
		StrengthBits:   8 * uint(p.cfg.MaxRequestSize),
		State:          ctx.State(),
	}, nil
}
