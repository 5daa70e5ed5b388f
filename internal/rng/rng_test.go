package rng

import (
	"bytes"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/ArowuTest/qrng-bridge/internal/entropy"
)

// stubDriver serves data for direct reads, or fails when fail is set.
type stubDriver struct {
	mu   sync.Mutex
	data []byte
	fail bool
}

func (d *stubDriver) Open(entropy.Kind, int) (entropy.Handle, error) {
	return nil, errors.New("not supported")
}

func (d *stubDriver) ReadHandled(entropy.Handle, []byte) (int, error) {
	return 0, errors.New("not supported")
}

func (d *stubDriver) ReadDirect(_ entropy.Kind, _ int, p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return -1, errors.New("device gone")
	}
	return copy(p, d.data), nil
}

func (d *stubDriver) Close(entropy.Handle) error { return nil }

// stubReader plays the OS entropy syscall.
type stubReader struct {
	mu    sync.Mutex
	data  []byte
	calls int
}

func (r *stubReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return copy(p, r.data), nil
}

// recordingScratch keeps every released buffer so the test can inspect it.
type recordingScratch struct {
	allocated int
	freed     [][]byte
}

func (s *recordingScratch) Alloc(n int) []byte {
	s.allocated++
	return make([]byte, n)
}

func (s *recordingScratch) Free(b []byte) {
	s.freed = append(s.freed, b)
}

func seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func newTestProvider(t *testing.T, mix bool, driver *stubDriver, os *stubReader, opts ...Option) *Provider {
	t.Helper()
	cfg := entropy.DefaultConfig()
	cfg.MixWithFallback = mix
	cfg.MaxRequestSize = 1024
	adapter, err := entropy.NewAdapter(cfg, driver, entropy.WithFallback(os))
	require.NoError(t, err)
	return NewProvider(adapter, opts...)
}

func readyContext(t *testing.T, p *Provider) *Context {
	t.Helper()
	ctx := p.NewContext()
	require.NoError(t, p.Instantiate(ctx, 256, false, nil))
	return ctx
}

func TestGenerate_Hardware(t *testing.T) {
	hw := seq(64, 0x10)
	os := &stubReader{data: seq(64, 0x80)}
	p := newTestProvider(t, false, &stubDriver{data: hw}, os)
	ctx := readyContext(t, p)

	for _, n := range []int{1, 7, 32, 64} {
		buf := make([]byte, n)
		res, err := p.Generate(ctx, buf, 256, false, nil)
		require.NoError(t, err)
		assert.Equal(t, hw[:n], buf)
		assert.Equal(t, Result{Length: n, Source: entropy.SourceHardware}, res)
	}
	assert.Zero(t, os.calls)
}

func TestGenerate_FallbackScenario(t *testing.T) {
	want := seq(32, 0x40)
	p := newTestProvider(t, false, &stubDriver{fail: true}, &stubReader{data: want})
	ctx := readyContext(t, p)

	buf := make([]byte, 32)
	res, err := p.Generate(ctx, buf, 256, false, nil)
	require.NoError(t, err)
	assert.Equal(t, want, buf)
	assert.Equal(t, entropy.SourceFallback, res.Source)
}

func TestGenerate_ShortFallbackFails(t *testing.T) {
	p := newTestProvider(t, false, &stubDriver{fail: true}, &stubReader{data: seq(8, 1)})
	ctx := readyContext(t, p)

	_, err := p.Generate(ctx, make([]byte, 16), 256, false, nil)
	require.ErrorIs(t, err, entropy.ErrShortRead)
}

func TestGenerate_ShortHardwareFallsBack(t *testing.T) {
	want := seq(16, 0x70)
	p := newTestProvider(t, false, &stubDriver{data: seq(4, 1)}, &stubReader{data: want})
	ctx := readyContext(t, p)

	buf := make([]byte, 16)
	res, err := p.Generate(ctx, buf, 0, true, []byte("ignored"))
	require.NoError(t, err)
	assert.Equal(t, want, buf)
	assert.Equal(t, entropy.SourceFallback, res.Source)
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func TestGenerate_Mixed(t *testing.T) {
	a := seq(48, 0x21) // OS entropy
	b := seq(48, 0xA0) // hardware

	generate := func(a, b []byte) []byte {
		p := newTestProvider(t, true, &stubDriver{data: b}, &stubReader{data: a})
		ctx := readyContext(t, p)
		buf := make([]byte, len(a))
		res, err := p.Generate(ctx, buf, 256, false, nil)
		require.NoError(t, err)
		assert.True(t, res.Mixed)
		assert.Equal(t, entropy.SourceHardware, res.Source)
		return buf
	}

	base := generate(a, b)
	require.Equal(t, xor(a, b), base)

	for _, bit := range []int{0, 9, 200, 383} {
		flip := func(src []byte) []byte {
			c := bytes.Clone(src)
			c[bit/8] ^= 1 << (bit % 8)
			return c
		}
		for _, out := range [][]byte{generate(flip(a), b), generate(a, flip(b))} {
			diff := xor(base, out)
			expected := make([]byte, len(diff))
			expected[bit/8] = 1 << (bit % 8)
			assert.Equal(t, expected, diff, "bit %d", bit)
		}
	}
}

func TestGenerate_MixedHardwareFailure(t *testing.T) {
	// both legs come from OS entropy, so identical reads cancel out
	os := &stubReader{data: seq(16, 3)}
	p := newTestProvider(t, true, &stubDriver{fail: true}, os)
	ctx := readyContext(t, p)

	buf := make([]byte, 16)
	res, err := p.Generate(ctx, buf, 256, false, nil)
	require.NoError(t, err)
	assert.Equal(t, entropy.SourceFallback, res.Source)
	assert.Equal(t, 2, os.calls)
	assert.Equal(t, make([]byte, 16), buf)
}

func TestGenerate_ScratchCleared(t *testing.T) {
	for _, tc := range []struct {
		name    string
		driver  *stubDriver
		os      *stubReader
		wantErr bool
	}{
		{"success", &stubDriver{data: seq(32, 0xF0)}, &stubReader{data: seq(32, 1)}, false},
		{"os leg fails", &stubDriver{data: seq(32, 0xF0)}, &stubReader{data: seq(8, 1)}, true},
		{"both fail", &stubDriver{fail: true}, &stubReader{data: seq(8, 1)}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			scratch := &recordingScratch{}
			p := newTestProvider(t, true, tc.driver, tc.os, WithScratch(scratch))
			ctx := readyContext(t, p)

			_, err := p.Generate(ctx, make([]byte, 32), 256, false, nil)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, 1, scratch.allocated)
			require.Len(t, scratch.freed, 1)
			assert.Equal(t, make([]byte, 32), scratch.freed[0])
		})
	}
}

func TestGenerate_Preconditions(t *testing.T) {
	p := newTestProvider(t, false, &stubDriver{data: seq(8, 1)}, &stubReader{data: seq(8, 1)})

	_, err := p.Generate(nil, make([]byte, 8), 0, false, nil)
	require.ErrorIs(t, err, ErrNilContext)

	ctx := p.NewContext()
	_, err = p.Generate(ctx, make([]byte, 8), 0, false, nil)
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, p.Instantiate(ctx, 0, false, nil))
	_, err = p.Generate(ctx, make([]byte, 1025), 0, false, nil)
	require.ErrorIs(t, err, ErrRequestTooLarge)

	res, err := p.Generate(ctx, nil, 0, false, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Length)

	p.FreeContext(ctx)
	_, err = p.Generate(ctx, make([]byte, 8), 0, false, nil)
	require.ErrorIs(t, err, ErrContextFreed)
}

func TestStateMachine(t *testing.T) {
	p := newTestProvider(t, false, &stubDriver{data: seq(8, 1)}, &stubReader{})
	ctx := p.NewContext()
	assert.Equal(t, StateUninitialised, ctx.State())

	require.NoError(t, p.Instantiate(ctx, 0, false, nil))
	assert.Equal(t, StateReady, ctx.State())
	require.NoError(t, p.Instantiate(ctx, 0, false, nil))
	assert.Equal(t, StateReady, ctx.State())

	require.NoError(t, p.Uninstantiate(ctx))
	assert.Equal(t, StateUninitialised, ctx.State())
	require.NoError(t, p.Uninstantiate(ctx))

	require.NoError(t, p.Instantiate(ctx, 0, false, nil))
	assert.Equal(t, StateReady, ctx.State())

	ctx.SetDevice("qrng0")
	p.FreeContext(ctx)
	p.FreeContext(ctx)
	assert.True(t, ctx.Freed())
	assert.Equal(t, StateUninitialised, ctx.State())
	assert.Empty(t, ctx.Device())
	assert.False(t, ctx.HasLock())
	assert.ErrorIs(t, p.Instantiate(ctx, 0, false, nil), ErrContextFreed)
	assert.ErrorIs(t, p.Uninstantiate(ctx), ErrContextFreed)
	assert.ErrorIs(t, p.EnableLocking(ctx), ErrContextFreed)

	assert.ErrorIs(t, p.Instantiate(nil, 0, false, nil), ErrNilContext)
	assert.ErrorIs(t, p.Uninstantiate(nil), ErrNilContext)
	p.FreeContext(nil)
}

func TestLocking(t *testing.T) {
	p := newTestProvider(t, false, &stubDriver{data: seq(8, 1)}, &stubReader{})
	ctx := p.NewContext()

	assert.False(t, ctx.HasLock())
	require.ErrorIs(t, p.Lock(ctx), ErrLockingDisabled)
	p.Unlock(ctx)

	require.NoError(t, p.EnableLocking(ctx))
	require.NoError(t, p.EnableLocking(ctx))
	require.True(t, ctx.HasLock())

	require.NoError(t, p.Lock(ctx))
	p.Unlock(ctx)
	p.Unlock(ctx)
	require.NoError(t, p.Lock(ctx))
	p.Unlock(ctx)

	assert.ErrorIs(t, p.Lock(nil), ErrNilContext)
	assert.ErrorIs(t, p.EnableLocking(nil), ErrNilContext)
	p.Unlock(nil)
}

func TestLocking_Configuration(t *testing.T) {
	newProvider := func(locking, onCreate bool) *Provider {
		cfg := entropy.DefaultConfig()
		cfg.Locking = locking
		cfg.LockOnCreate = onCreate
		adapter, err := entropy.NewAdapter(cfg, &stubDriver{})
		require.NoError(t, err)
		return NewProvider(adapter)
	}

	p := newProvider(true, true)
	ctx := p.NewContext()
	assert.True(t, ctx.HasLock())
	require.NoError(t, p.Lock(ctx))
	p.Unlock(ctx)

	p = newProvider(false, true)
	ctx = p.NewContext()
	assert.False(t, ctx.HasLock())
	require.NoError(t, p.EnableLocking(ctx))
	assert.False(t, ctx.HasLock())
	assert.ErrorIs(t, p.Lock(ctx), ErrLockingDisabled)
}

func TestLock_FreeWakesWaiter(t *testing.T) {
	p := newTestProvider(t, false, &stubDriver{data: seq(8, 1)}, &stubReader{})
	ctx := p.NewContext()
	require.NoError(t, p.EnableLocking(ctx))
	require.NoError(t, p.Lock(ctx))

	errc := make(chan error, 1)
	go func() { errc <- p.Lock(ctx) }()
	p.FreeContext(ctx)
	assert.ErrorIs(t, <-errc, ErrContextFreed)
}

func TestLock_FreedWhileWaiting(t *testing.T) {
	ctx := newContext(true, true)
	lock := ctx.lock
	ctx.free()

	// Both select cases are ready; the freed context must still win.
	for i := 0; i < 64; i++ {
		require.ErrorIs(t, ctx.wait(lock), ErrContextFreed)
		require.Empty(t, lock)
	}
}

// slowDriver writes one byte at a time, yielding between writes, and
// records how many reads overlap.
type slowDriver struct {
	stubDriver
	fill    atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
}

func (d *slowDriver) ReadDirect(_ entropy.Kind, _ int, p []byte) (int, error) {
	if d.active.Inc() > 1 {
		d.overlap.Store(true)
	}
	defer d.active.Dec()
	v := byte(d.fill.Inc())
	for i := range p {
		p[i] = v
		runtime.Gosched()
	}
	return len(p), nil
}

func TestLock_SerialisesGenerate(t *testing.T) {
	driver := &slowDriver{}
	cfg := entropy.DefaultConfig()
	adapter, err := entropy.NewAdapter(cfg, driver, entropy.WithFallback(&stubReader{}))
	require.NoError(t, err)
	p := NewProvider(adapter)

	ctx := readyContext(t, p)
	require.NoError(t, p.EnableLocking(ctx))

	shared := make([]byte, 256)
	var (
		wg    sync.WaitGroup
		torn  atomic.Bool
		calls = 50
	)
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				if err := p.Lock(ctx); err != nil {
					t.Error(err)
					return
				}
				if _, err := p.Generate(ctx, shared, 0, false, nil); err != nil {
					t.Error(err)
				}
				if !bytes.Equal(shared, bytes.Repeat(shared[:1], len(shared))) {
					torn.Store(true)
				}
				p.Unlock(ctx)
			}
		}()
	}
	wg.Wait()

	assert.False(t, driver.overlap.Load())
	assert.False(t, torn.Load())
	assert.Equal(t, int32(2*calls), driver.fill.Load())
}

func TestParams(t *testing.T) {
	p := newTestProvider(t, false, &stubDriver{}, &stubReader{})
	ctx := p.NewContext()

	assert.Equal(t, []string{"max_request", "strength", "state"}, p.GettableParams())

	params, err := p.Params(ctx)
	require.NoError(t, err)
	assert.Equal(t, Params{MaxRequestSize: 1024, StrengthBits: 8192, State: StateUninitialised}, params)

	require.NoError(t, p.Instantiate(ctx, 0, false, nil))
	params, err = p.Params(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateReady, params.State)

	_, err = p.Params(nil)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestReader(t *testing.T) {
	hw := bytes.Repeat([]byte{0x5C}, 1024)
	p := newTestProvider(t, false, &stubDriver{data: hw}, &stubReader{})
	ctx := readyContext(t, p)
	require.NoError(t, p.EnableLocking(ctx))

	buf := make([]byte, 2500)
	n, err := NewReader(p, ctx).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2500, n)
	assert.Equal(t, bytes.Repeat([]byte{0x5C}, 2500), buf)

	// the lock was released after each chunk
	require.NoError(t, p.Lock(ctx))
	p.Unlock(ctx)

	require.NoError(t, p.Uninstantiate(ctx))
	n, err = NewReader(p, ctx).Read(buf)
	require.ErrorIs(t, err, ErrNotReady)
	assert.Zero(t, n)
}
