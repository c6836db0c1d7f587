package cdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"

	"pkt.systems/checkin/schema"
)

// Config locates the control endpoint of an already running browser.
type Config struct {
	Host string
	Port int
	// AttachTimeout bounds the attach handshake and the protocol-level
	// operations that are not element waits.
	AttachTimeout time.Duration
}

// Session drives one attached browser tab over the DevTools protocol. All
// element operations take an explicit wait budget; a budget that runs out is
// reported as schema.ErrElementNotFound.
type Session struct {
	cfg        Config
	browserCtx context.Context
	tabCtx     context.Context
	cancels    []context.CancelFunc
}

// Attach connects to the DevTools endpoint and binds to the browser's
// existing page target, so state left in the visible tab (an open dialog, a
// signed-in session) stays observable. A fresh tab is created only when the
// browser has no page at all.
func Attach(ctx context.Context, cfg Config) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 9222
	}
	if cfg.AttachTimeout <= 0 {
		cfg.AttachTimeout = 10 * time.Second
	}
	log := pslog.Ctx(ctx)

	url := fmt.Sprintf("http://%s/", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	// The chromedp contexts live as long as the session, not as long as any
	// single operation; per-operation deadlines are derived in opContext.
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), url)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:        cfg,
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{allocCancel, browserCancel},
	}

	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		s.release()
		return nil, fmt.Errorf("attach to %s: %w", url, err)
	}
	var pageID target.ID
	for _, info := range infos {
		if info.Type == "page" {
			pageID = info.TargetID
			break
		}
	}

	var tabCtx context.Context
	var tabCancel context.CancelFunc
	if pageID != "" {
		tabCtx, tabCancel = chromedp.NewContext(browserCtx, chromedp.WithTargetID(pageID))
	} else {
		tabCtx, tabCancel = chromedp.NewContext(browserCtx)
	}
	s.tabCtx = tabCtx
	s.cancels = append(s.cancels, tabCancel)

	if err := chromedp.Run(tabCtx); err != nil {
		s.release()
		return nil, fmt.Errorf("attach to %s: %w", url, err)
	}
	if log != nil {
		log.Debug("session attached", "endpoint", url, "targets", len(infos), "fresh_tab", pageID == "")
	}
	return s, nil
}

// Navigate loads the URL in the attached tab and waits for the page load,
// bounded by timeout.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	opCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible element.
func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	opCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.WaitVisible(sel)); err != nil {
		return notFoundErr(sel, err)
	}
	return nil
}

// Text returns the visible text of the first element matching the selector.
func (s *Session) Text(ctx context.Context, sel string, timeout time.Duration) (string, error) {
	opCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()
	var text string
	if err := chromedp.Run(opCtx, chromedp.Text(sel, &text)); err != nil {
		return "", notFoundErr(sel, err)
	}
	return text, nil
}

// OuterHTML returns the outer HTML of the first element matching the
// selector. Pass "html" for a whole-page snapshot.
func (s *Session) OuterHTML(ctx context.Context, sel string, timeout time.Duration) (string, error) {
	opCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()
	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML(sel, &html)); err != nil {
		return "", notFoundErr(sel, err)
	}
	return html, nil
}

// HoverClick moves the pointer onto the element, holds it there for pause,
// then clicks at the same point. Elements that render their click target
// only while hovered need the move and the pause before the click lands.
func (s *Session) HoverClick(ctx context.Context, sel string, pause, timeout time.Duration) error {
	opCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()
	var nodes []*cdp.Node
	err := chromedp.Run(opCtx,
		chromedp.Nodes(sel, &nodes, chromedp.AtLeast(1)),
		chromedp.ActionFunc(func(c context.Context) error {
			node := nodes[0]
			if err := dom.ScrollIntoViewIfNeeded().WithNodeID(node.NodeID).Do(c); err != nil {
				return err
			}
			quads, err := dom.GetContentQuads().WithNodeID(node.NodeID).Do(c)
			if err != nil {
				return err
			}
			if len(quads) == 0 || len(quads[0]) < 8 {
				return fmt.Errorf("no content box for %s", sel)
			}
			x, y := quadCenter(quads[0])
			if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(c); err != nil {
				return err
			}
			select {
			case <-time.After(pause):
			case <-c.Done():
				return c.Err()
			}
			return chromedp.MouseClickXY(x, y).Do(c)
		}),
	)
	if err != nil {
		return notFoundErr(sel, err)
	}
	return nil
}

// ClickScript invokes the element's click handler from script, with no
// pointer movement. Dialogs that dismiss on hover changes stay open.
func (s *Session) ClickScript(ctx context.Context, sel string, timeout time.Duration) error {
	opCtx, cancel := s.opContext(ctx, timeout)
	defer cancel()
	var nodes []*cdp.Node
	err := chromedp.Run(opCtx,
		chromedp.Nodes(sel, &nodes, chromedp.AtLeast(1)),
		chromedp.ActionFunc(func(c context.Context) error {
			obj, err := dom.ResolveNode().WithNodeID(nodes[0].NodeID).Do(c)
			if err != nil {
				return err
			}
			_, exp, err := runtime.CallFunctionOn("function() { this.click(); }").
				WithObjectID(obj.ObjectID).
				Do(c)
			if err != nil {
				return err
			}
			if exp != nil {
				return exp
			}
			return nil
		}),
	)
	if err != nil {
		return notFoundErr(sel, err)
	}
	return nil
}

// BrowserVersion reports the product string of the attached browser.
func (s *Session) BrowserVersion(ctx context.Context) (string, error) {
	opCtx, cancel := s.opContext(ctx, s.cfg.AttachTimeout)
	defer cancel()
	c := chromedp.FromContext(s.browserCtx)
	if c == nil || c.Browser == nil {
		return "", schema.ErrSessionClosed
	}
	_, product, _, _, _, err := browser.GetVersion().Do(cdp.WithExecutor(opCtx, c.Browser))
	if err != nil {
		return "", err
	}
	return product, nil
}

// CloseBrowser asks the browser to shut itself down over the protocol.
func (s *Session) CloseBrowser(ctx context.Context) error {
	opCtx, cancel := s.opContext(ctx, s.cfg.AttachTimeout)
	defer cancel()
	c := chromedp.FromContext(s.browserCtx)
	if c == nil || c.Browser == nil {
		return schema.ErrSessionClosed
	}
	return browser.Close().Do(cdp.WithExecutor(opCtx, c.Browser))
}

// Close releases the session. The browser process and its tabs are left
// alone; stopping them is the supervisor's job.
func (s *Session) Close() error {
	s.release()
	return nil
}

func (s *Session) release() {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
	s.cancels = nil
}

// opContext bounds one operation by timeout while still honoring caller
// cancellation. The returned context carries the session's target, so the
// deadline cuts the operation off without tearing down the session.
func (s *Session) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func notFoundErr(sel string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", schema.ErrElementNotFound, sel)
	}
	return err
}

func quadCenter(q dom.Quad) (x, y float64) {
	n := len(q) / 2
	for i := 0; i < n; i++ {
		x += q[2*i]
		y += q[2*i+1]
	}
	return x / float64(n), y / float64(n)
}
