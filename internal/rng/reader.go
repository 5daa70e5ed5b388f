package rng

import "io"

// Reader adapts a ready context to io.Reader. Each chunk of at most the
// maximum request size is generated under the context lock when one exists.
type Reader struct {
	p   *Provider
	ctx *Context
}

var _ io.Reader = (*Reader)(nil)

// NewReader returns a Reader drawing from ctx.
func NewReader(p *Provider, ctx *Context) *Reader {
	return &Reader{p: p, ctx: ctx}
}

// Read fills b completely or returns the bytes produced before the failing
// chunk along with the error.
func (r *Reader) Read(b []byte) (int, error) {
	limit := r.p.cfg.MaxRequestSize
	off := 0
	for off < len(b) {
		end := off + limit
		if end > len(b) {
			end = len(b)
		}
		if err := r.generate(b[off:end]); err != nil {
			return off, err
		}
		off = end
	}
	return off, nil
}

func (r *Reader) generate(chunk []byte) error {
	if r.ctx != nil && r.ctx.HasLock() {
		if err := r.p.Lock(r.ctx); err != nil {
			return err
		}
		defer r.p.Unlock(r.ctx)
	}
	_, err := r.p.Generate(r.ctx, chunk, 0, false, nil)
	return err
}
