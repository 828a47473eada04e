package diagram

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"projectron-api/internal/config"
	"projectron-api/internal/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// generateJS resolves with {success, result} or {success: false, error}.
const generateJS = `(source) => new Promise((resolve) => {
	try {
		SEQ.api.generateSvgDataUrl(source, (url) => resolve({ success: true, result: url }));
	} catch (e) {
		resolve({ success: false, error: String(e) });
	}
})`

const readyJS = `() => typeof SEQ !== 'undefined' && !!SEQ.api`

type evalResult struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Error   string `json:"error"`
}

// defaultSessionTimeout bounds the liveness check and each close call.
const defaultSessionTimeout = 2 * time.Second

// BrowserRenderer keeps one browser page on the sequence diagram site open
// and evaluates the site's API in it. Calls are serialized.
type BrowserRenderer struct {
	cfg            config.RendererConfig
	logger         *zap.Logger
	sessionTimeout time.Duration

	mu            sync.Mutex
	browser       *rod.Browser
	page          *rod.Page
	launched      *launcher.Launcher
	cancelSession context.CancelFunc
}

// NewBrowserRenderer connects lazily on the first call.
func NewBrowserRenderer(cfg config.RendererConfig, l *zap.Logger) *BrowserRenderer {
	return &BrowserRenderer{cfg: cfg, logger: logger.Or(l), sessionTimeout: defaultSessionTimeout}
}

func (r *BrowserRenderer) Validate(ctx context.Context, source string) error {
	res, err := r.call(ctx, "validate", r.cfg.ValidateTimeout, source)
	if err != nil {
		return err
	}
	if !res.Success {
		detail := res.Error
		if detail == "" {
			detail = "unknown error"
		}
		return &SyntaxError{Detail: detail}
	}
	return nil
}

func (r *BrowserRenderer) Render(ctx context.Context, source string) (string, error) {
	res, err := r.call(ctx, "render", r.cfg.RenderTimeout, source)
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", fmt.Errorf("render sequence diagram: %s", res.Error)
	}
	return decodeDataURL(res.Result)
}

// Close shuts the page and the browser down.
func (r *BrowserRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropLocked()
}

// call runs one evaluation on a worker goroutine so a hung browser never
// blocks the caller beyond timeout. Every browser call the worker makes is
// bound to ctx as well, so it gives the session lock back soon after.
func (r *BrowserRenderer) call(ctx context.Context, op string, timeout time.Duration, source string) (evalResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res evalResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.evalWithRetry(ctx, source)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return evalResult{}, fmt.Errorf("renderer %s: %w", op, ctx.Err())
	}
}

func (r *BrowserRenderer) evalWithRetry(ctx context.Context, source string) (evalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// the caller may have given up while this worker waited for the lock
	if err := ctx.Err(); err != nil {
		return evalResult{}, err
	}

	attempts := r.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(r.cfg.RetryDelay):
			case <-ctx.Done():
				return evalResult{}, ctx.Err()
			}
		}

		if err := r.ensureLocked(ctx); err != nil {
			last = err
			r.logger.Warn("renderer session unavailable",
				zap.Int("attempt", i+1), zap.Int("max_attempts", attempts), zap.Error(err))
			continue
		}

		res, err := r.evalLocked(ctx, source)
		if err == nil {
			return res, nil
		}
		last = err
		r.logger.Warn("renderer call failed, dropping session",
			zap.Int("attempt", i+1), zap.Int("max_attempts", attempts), zap.Error(err))
		_ = r.dropLocked()
		if ctx.Err() != nil {
			return evalResult{}, ctx.Err()
		}
	}
	return evalResult{}, fmt.Errorf("renderer failed after %d attempts: %w", attempts, last)
}

// ensureLocked reuses a live session or opens a new one.
func (r *BrowserRenderer) ensureLocked(ctx context.Context) error {
	if r.browser != nil {
		if r.aliveLocked(ctx) {
			return nil
		}
		r.logger.Info("renderer session is stale, reconnecting")
		_ = r.dropLocked()
	}

	// The session outlives this call; connecting must not.
	session, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	browser, page, err := r.connect(ctx, session)
	if !stop() {
		err = fmt.Errorf("connect to browser: %w", ctx.Err())
	}
	if err != nil {
		cancel()
		r.killLaunched()
		return err
	}

	r.browser = browser
	r.page = page
	r.cancelSession = cancel
	r.logger.Info("renderer session connected", zap.String("site", r.cfg.SiteURL))
	return nil
}

func (r *BrowserRenderer) aliveLocked(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.sessionTimeout)
	defer cancel()
	_, err := r.browser.Context(ctx).Version()
	return err == nil
}

// connect opens the browser and the diagram page. Browser and page carry
// session as their context; waiting for the page uses ctx.
func (r *BrowserRenderer) connect(ctx, session context.Context) (*rod.Browser, *rod.Page, error) {
	controlURL := r.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(session).Headless(r.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		r.launched = l
	}

	browser := rod.New().Context(session).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect to browser: %w", err)
	}

	fail := func(format string, err error) (*rod.Browser, *rod.Page, error) {
		if ctx.Err() == nil {
			_ = r.closeBrowser(browser)
		}
		return nil, nil, fmt.Errorf(format, r.cfg.SiteURL, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: r.cfg.SiteURL})
	if err != nil {
		return fail("open %s: %w", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		return fail("load %s: %w", err)
	}
	if err := page.Context(ctx).Wait(rod.Eval(readyJS)); err != nil {
		return fail("wait for diagram api on %s: %w", err)
	}
	return browser, page, nil
}

func (r *BrowserRenderer) closeBrowser(b *rod.Browser) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.sessionTimeout)
	defer cancel()
	return b.Context(ctx).Close()
}

func (r *BrowserRenderer) evalLocked(ctx context.Context, source string) (evalResult, error) {
	obj, err := r.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           generateJS,
		JSArgs:       []interface{}{source},
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return evalResult{}, err
	}
	if obj == nil {
		return evalResult{}, errors.New("renderer returned no result")
	}

	raw, err := obj.Value.MarshalJSON()
	if err != nil {
		return evalResult{}, err
	}
	var res evalResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return evalResult{}, fmt.Errorf("decode renderer result: %w", err)
	}
	return res, nil
}

func (r *BrowserRenderer) dropLocked() error {
	var err error
	if r.page != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.sessionTimeout)
		_ = r.page.Context(ctx).Close()
		cancel()
		r.page = nil
	}
	if r.browser != nil {
		err = r.closeBrowser(r.browser)
		r.browser = nil
	}
	if r.cancelSession != nil {
		r.cancelSession()
		r.cancelSession = nil
	}
	r.killLaunched()
	return err
}

func (r *BrowserRenderer) killLaunched() {
	if r.launched != nil {
		r.launched.Kill()
		r.launched = nil
	}
}

// decodeDataURL extracts the SVG document from a base64 data URL.
func decodeDataURL(u string) (string, error) {
	_, payload, ok := strings.Cut(u, ",")
	if !ok {
		return "", fmt.Errorf("renderer returned a malformed data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode svg payload: %w", err)
	}
	return strings.ReplaceAll(string(raw), `\"`, `"`), nil
}
