// internal/rng/engine.go
package rng

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/ArowuTest/qrng-bridge/internal/entropy"
)

var (
	ErrNilContext      = errors.New("rng: nil context")
	ErrNotReady        = errors.New("rng: context is not instantiated")
	ErrContextFreed    = errors.New("rng: context has been freed")
	ErrLockingDisabled = errors.New("rng: locking is not enabled for this context")
	ErrRequestTooLarge = errors.New("rng: request exceeds maximum size")
)

// Scratch hands out the temporary buffer used when mixing. Buffers are
// cleared before they are passed back to Free.
type Scratch interface {
	Alloc(n int) []byte
	Free(b []byte)
}

type heapScratch struct{}

func (heapScratch) Alloc(n int) []byte { return make([]byte, n) }
func (heapScratch) Free([]byte) {}

// Result describes where the bytes of a successful generation came from.
type Result struct {
	Length int
	// Source is the origin of the hardware leg; SourceFallback means the
	// hardware failed and OS entropy was used instead.
	Source entropy.Source
	Mixed  bool
}

// Engine serves single generation requests. It holds no per-request state
// and is safe for concurrent use; per-context serialisation is the caller's
// job.
type Engine struct {
	adapter    *entropy.Adapter
	mix        bool
	maxRequest int
	scratch    Scratch
	logger     hclog.Logger
}

// Generate fills out with len(out) bytes or fails. strength,
// predictionResistance and additionalInput are accepted for interface
// compatibility; the hardware source is treated as unconditionally strong
// and additional input is not mixed in.
func (e *Engine) Generate(ctx *Context, out []byte, strength uint, predictionResistance bool, additionalInput []byte) (Result, error) {
	if ctx == nil {
		return Result{}, ErrNilContext
	}
	if ctx.Freed() {
		return Result{}, ErrContextFreed
	}
	if ctx.State() != StateReady {
		return Result{}, ErrNotReady
	}
	if len(out) > e.maxRequest {
		return Result{}, fmt.Errorf("%w: %d > %d", ErrRequestTooLarge, len(out), e.maxRequest)
	}
	if len(out) == 0 {
		return Result{Mixed: e.mix}, nil
	}

	defer metrics.MeasureSince([]string{"qrng", "generate"}, time.Now())

	var (
		res Result
		err error
	)
	if e.mix {
		res, err = e.generateMixed(out)
	} else {
		var src entropy.Source
		src, err = e.adapter.ReadHardware(out)
		res = Result{Length: len(out), Source: src}
	}
	if err != nil {
		metrics.IncrCounter([]string{"qrng", "generate", "failure"}, 1)
		e.logger.Error("generate failed", "length", len(out), "mixed", e.mix, "error", err)
		return Result{}, err
	}

	metrics.IncrCounter([]string{"qrng", "generate", res.Source.String()}, 1)
	metrics.IncrCounter([]string{"qrng", "bytes"}, float32(len(out)))
	return res, nil
}

// generateMixed XORs a hardware read with an independent OS entropy read.
func (e *Engine) generateMixed(out []byte) (Result, error) {
	scratch := e.scratch.Alloc(len(out))
	defer func() {
		clear(scratch)
		e.scratch.Free(scratch)
	}()
	if len(scratch) != len(out) {
		return Result{}, fmt.Errorf("rng: scratch allocation returned %d of %d bytes", len(scratch), len(out))
	}

	src, err := e.adapter.ReadHardware(scratch)
	if err != nil {
		return Result{}, fmt.Errorf("rng: hardware leg: %w", err)
	}
	if err := e.adapter.ReadFallback(out); err != nil {
		return Result{}, fmt.Errorf("rng: OS entropy leg: %w", err)
	}

	subtle.XORBytes(out, out, scratch)
	return Result{Length: len(out), Source: src, Mixed: true}, nil
}
