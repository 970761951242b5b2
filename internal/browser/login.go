// Package browser implements the interactive sign-in capability with a
// headless Chrome session. The portal fronts its accounts with Azure AD B2C,
// so a plain form POST is not enough: the flow bounces through the identity
// provider and a federation hop before landing back on the portal domain
// with the session cookies set.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"hopwatch/internal/logger"
	"hopwatch/internal/portal"
)

// DefaultTimeout bounds the whole sign-in flow, form fill through final
// redirect.
const DefaultTimeout = 2 * time.Minute

const federationHost = "federation.aucklandtransport.govt.nz"

// Login drives the B2C sign-in form and harvests the browser's cookies once
// the flow lands back on the portal domain. It satisfies
// portal.InteractiveLogin.
type Login struct {
	// EntryURL is the sign-in entry page.
	EntryURL string
	// PortalHost marks the flow as complete once the tab's location
	// contains it.
	PortalHost string
	// Timeout for the whole flow; DefaultTimeout when zero.
	Timeout time.Duration
}

// Perform runs the sign-in flow and returns the resulting cookie set.
func (l *Login) Perform(ctx context.Context, username, password string) ([]*http.Cookie, error) {
	log := logger.FromContext(ctx)

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	log.Info().Str("entry_url", l.EntryURL).Msg("starting headless browser sign-in")

	var cookies []*http.Cookie
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(l.EntryURL),
		chromedp.WaitVisible(`#signInName`, chromedp.ByID),
		chromedp.SendKeys(`#signInName`, username, chromedp.ByID),
		chromedp.WaitVisible(`#password`, chromedp.ByID),
		chromedp.SendKeys(`#password`, password, chromedp.ByID),
		chromedp.Click(`#next`, chromedp.ByID),
		l.awaitPortal(log),
		chromedp.ActionFunc(func(ctx context.Context) error {
			raw, err := network.GetCookies().Do(ctx)
			if err != nil {
				return err
			}
			for _, c := range raw {
				cookies = append(cookies, toHTTPCookie(c))
			}
			return nil
		}),
	)
	if err != nil {
		if errors.Is(err, portal.ErrAuthRejected) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: flow did not complete within %s", portal.ErrAuthTimeout, timeout)
		}
		return nil, fmt.Errorf("Perform: %w", err)
	}

	log.Info().Int("cookies", len(cookies)).Msg("sign-in flow completed")
	return cookies, nil
}

// awaitPortal polls the tab location until the flow lands back on the portal
// domain. Along the way it surfaces B2C credential errors and nudges the
// federation hop past its occasional manual continue button.
func (l *Login) awaitPortal(log zerolog.Logger) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			var loc string
			if err := chromedp.Location(&loc).Do(ctx); err != nil {
				return err
			}
			if strings.Contains(loc, l.PortalHost) {
				return nil
			}

			// B2C renders credential failures into a page-level error block
			// instead of failing the navigation.
			var errText string
			if err := chromedp.Evaluate(
				`(function(){var e=document.querySelector('.error.pageLevel');return e?e.textContent.trim():''})()`,
				&errText,
			).Do(ctx); err == nil && errText != "" {
				return fmt.Errorf("%w: %s", portal.ErrAuthRejected, errText)
			}

			if strings.Contains(loc, federationHost) {
				// The hop usually auto-submits; click through when it does not.
				log.Debug().Str("location", loc).Msg("still on federation page, clicking continue")
				_ = chromedp.Click(`button[type="submit"], input[type="submit"]`,
					chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx)
			}
		}
	}
}

func toHTTPCookie(c *network.Cookie) *http.Cookie {
	out := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if c.Expires > 0 {
		out.Expires = time.Unix(int64(c.Expires), 0)
	}
	return out
}
