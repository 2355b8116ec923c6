package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"resume-pdf-api/internal/shared/telemetry"
)

// ErrTimeout indicates a render exceeded the pool's per-render timeout.
var ErrTimeout = errors.New("render timed out")

const healthCheckHTML = `<!DOCTYPE html><html><head><title>health</title></head><body><p>renderer health check</p></body></html>`

// Renderer converts an HTML document to PDF bytes.
type Renderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

type instance interface {
	printPDF(ctx context.Context, html string) ([]byte, error)
	close()
}

type launcher func(ctx context.Context) (instance, error)

// Options sizes the browser pool.
type Options struct {
	PoolSize   int
	Timeout    time.Duration
	ChromePath string
}

func (o Options) withDefaults() Options {
	if o.PoolSize <= 0 {
		o.PoolSize = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	return o
}

// Pool is a fixed-size set of browser instances. A nil slot is launched on demand,
// so an instance that fails a render is closed and replaced on its next use.
type Pool struct {
	opts     Options
	launch   launcher
	slots    chan instance
	shutdown context.CancelFunc
}

// NewPool creates a pool of headless Chrome instances. Browsers start lazily.
func NewPool(opts Options) *Pool {
	opts = opts.withDefaults()
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts.ChromePath)...)
	return newPool(opts, chromeLauncher(allocCtx), cancel)
}

func newPool(opts Options, launch launcher, shutdown context.CancelFunc) *Pool {
	opts = opts.withDefaults()
	p := &Pool{
		opts:     opts,
		launch:   launch,
		slots:    make(chan instance, opts.PoolSize),
		shutdown: shutdown,
	}
	for i := 0; i < opts.PoolSize; i++ {
		p.slots <- nil
	}
	return p
}

// RenderPDF prints html as an A4 PDF. It blocks while every instance is busy.
func (p *Pool) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	inst, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}

	rctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := time.Now()
	data, err := inst.printPDF(rctx, withPrintCSS(html))
	if err == nil {
		_, err = PageCount(data)
	}
	if err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrTimeout, p.opts.Timeout)
		}
		p.recycle(inst, err)
		return nil, err
	}
	p.slots <- inst

	telemetry.Debug("renderer.rendered", map[string]any{
		"bytes":       len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return data, nil
}

// Check renders a small document and verifies the output is a PDF with at least one page.
func (p *Pool) Check(ctx context.Context) error {
	if _, err := p.RenderPDF(ctx, healthCheckHTML); err != nil {
		return fmt.Errorf("renderer health check: %w", err)
	}
	return nil
}

// Close stops idle instances and the browser allocator.
func (p *Pool) Close() {
	for {
		select {
		case inst := <-p.slots:
			if inst != nil {
				inst.close()
			}
		default:
			if p.shutdown != nil {
				p.shutdown()
			}
			return
		}
	}
}

func (p *Pool) acquire(ctx context.Context) (instance, error) {
	select {
	case inst := <-p.slots:
		if inst != nil {
			return inst, nil
		}
		fresh, err := p.launch(ctx)
		if err != nil {
			p.slots <- nil
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		telemetry.Info("renderer.instance_launched", nil)
		return fresh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) recycle(inst instance, cause error) {
	inst.close()
	p.slots <- nil
	telemetry.Warn("renderer.instance_recycled", map[string]any{"error": cause})
}

var _ Renderer = (*Pool)(nil)
