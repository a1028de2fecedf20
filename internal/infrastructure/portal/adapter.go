// Package portal drives procurement portals through their HTML forms.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/vendedor360/backend/internal/domain"
	"github.com/vendedor360/backend/internal/infrastructure/logger"
	"golang.org/x/time/rate"
)

var (
	errFormNotFound = errors.New("form not found")
	errNotLoggedIn  = errors.New("session is not logged in")
	errClosed       = errors.New("session is closed")
)

// Options tunes the HTTP behaviour of an adapter
type Options struct {
	RequestTimeout time.Duration
	// RateLimit is the sustained number of requests per second sent to the portal
	RateLimit float64
	Burst     int
	UserAgent string
}

// Adapter implements domain.SiteAdapter for a form-based portal described by a Profile.
// It holds one browsing session (cookie jar) and is not safe for concurrent use.
type Adapter struct {
	profile     Profile
	collector   *colly.Collector
	rateLimiter *rate.Limiter
	log         *logger.Logger

	consumed atomic.Bool
	loggedIn bool
	closed   bool
}

// NewAdapter creates an adapter for the given portal profile
func NewAdapter(profile Profile, opts Options, log *logger.Logger) (*Adapter, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Vendedor360/1.0"
	}
	if log == nil {
		log = logger.Discard()
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(opts.UserAgent),
	)
	collector.SetRequestTimeout(opts.RequestTimeout)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	collector.SetCookieJar(jar)

	return &Adapter{
		profile:     profile,
		collector:   collector,
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		log:         log.WithPortal(profile.Name),
	}, nil
}

// Name returns the portal name
func (a *Adapter) Name() string {
	return a.profile.Name
}

// SingleOfferPerTender reports whether the portal's offer form takes a single product
func (a *Adapter) SingleOfferPerTender() bool {
	return a.profile.SingleOfferPerTender
}

// Login posts the credentials through the portal's login form
func (a *Adapter) Login(ctx context.Context, creds domain.Credentials) error {
	if a.closed {
		return fmt.Errorf("%w: %v", domain.ErrAuthenticationFailure, errClosed)
	}
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: missing credentials", domain.ErrAuthenticationFailure)
	}

	loginURL := a.profile.URL(a.profile.LoginPath)
	form, err := a.loadForm(ctx, loginURL, a.profile.LoginFormSelector)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthenticationFailure, err)
	}
	form.fields[a.profile.UsernameField] = creds.Username
	form.fields[a.profile.PasswordField] = creds.Password

	c := a.collector.Clone()
	var failure string
	failed := false
	formShown := false
	c.OnHTML(a.profile.LoginFormSelector, func(e *colly.HTMLElement) {
		if e.DOM.Find(`input[name="` + a.profile.PasswordField + `"]`).Length() > 0 {
			formShown = true
		}
	})
	if a.profile.LoginFailureSelector != "" {
		c.OnHTML(a.profile.LoginFailureSelector, func(e *colly.HTMLElement) {
			failed = true
			if failure == "" {
				failure = collapseSpaces(e.Text)
			}
		})
	}

	if err := a.wait(ctx); err != nil {
		return err
	}
	if err := c.Post(form.action, form.fields); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthenticationFailure, err)
	}
	if failed {
		return fmt.Errorf("%w: portal rejected credentials: %s", domain.ErrAuthenticationFailure, failure)
	}
	if formShown {
		return fmt.Errorf("%w: login form shown again after posting credentials", domain.ErrAuthenticationFailure)
	}

	a.loggedIn = true
	a.log.Info("portal_login", "username", creds.Username)
	return nil
}

// ListOpportunities walks the listing pages lazily, one page per pull.
// The sequence can be ranged over once; later attempts yield ErrSequenceConsumed.
func (a *Adapter) ListOpportunities(ctx context.Context) iter.Seq2[domain.Opportunity, error] {
	return func(yield func(domain.Opportunity, error) bool) {
		if !a.consumed.CompareAndSwap(false, true) {
			yield(domain.Opportunity{}, domain.ErrSequenceConsumed)
			return
		}
		if err := a.ready(); err != nil {
			yield(domain.Opportunity{}, fmt.Errorf("%w: %v", domain.ErrListingFailure, err))
			return
		}

		maxPages := a.profile.MaxPages
		if maxPages <= 0 {
			maxPages = 1
		}

		next := a.profile.URL(a.profile.ListingPath)
		visited := make(map[string]bool)
		for page := 1; next != "" && page <= maxPages && !visited[next]; page++ {
			visited[next] = true

			opps, nextURL, err := a.fetchPage(ctx, next)
			if err != nil {
				yield(domain.Opportunity{}, err)
				return
			}
			a.log.Debug("listing_page", "page", page, "opportunities", len(opps))

			for _, opp := range opps {
				if !yield(opp, nil) {
					return
				}
			}
			next = nextURL
		}
	}
}

func (a *Adapter) fetchPage(ctx context.Context, pageURL string) ([]domain.Opportunity, string, error) {
	if err := a.wait(ctx); err != nil {
		return nil, "", err
	}

	c := a.collector.Clone()
	var opps []domain.Opportunity
	var next string

	c.OnHTML(a.profile.ItemSelector, func(e *colly.HTMLElement) {
		if opp, ok := MapOpportunity(e, a.profile); ok {
			opps = append(opps, opp)
		}
	})
	if a.profile.NextPageSelector != "" {
		c.OnHTML(a.profile.NextPageSelector, func(e *colly.HTMLElement) {
			if next == "" {
				next = e.Request.AbsoluteURL(e.Attr("href"))
			}
		})
	}

	if err := c.Visit(pageURL); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", domain.ErrListingFailure, pageURL, err)
	}
	return opps, next, nil
}

// SubmitOffer loads the opportunity page and posts its offer form with the
// product fields and attachments.
func (a *Adapter) SubmitOffer(ctx context.Context, offer domain.Offer) error {
	if err := a.ready(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubmissionFailure, err)
	}
	if offer.Opportunity.URL == "" {
		return fmt.Errorf("%w: opportunity %s has no url", domain.ErrSubmissionFailure, offer.Opportunity.ID)
	}

	form, err := a.loadForm(ctx, offer.Opportunity.URL, a.profile.OfferFormSelector)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrSubmissionFailure, err)
	}

	setField(form.fields, a.profile.CodeField, offer.Product.Code)
	setField(form.fields, a.profile.DescriptionField, offer.Product.Description)
	setField(form.fields, a.profile.PriceField, offer.Product.Price.String())

	var uploads []upload
	for _, att := range offer.Attachments {
		field := a.attachmentField(att.Kind)
		if field == "" {
			a.log.Debug("attachment_field_missing", "kind", string(att.Kind), "product_code", offer.Product.Code)
			continue
		}
		uploads = append(uploads, upload{field: field, attachment: att})
	}

	body, contentType, skipped, err := encodeMultipart(form.fields, uploads)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubmissionFailure, err)
	}
	for _, miss := range skipped {
		a.log.AttachmentMissing(offer.Product.Code, string(miss.attachment.Kind), miss.attachment.Path, miss.err)
	}

	c := a.collector.Clone()
	var rejection string
	if a.profile.OfferErrorSelector != "" {
		c.OnHTML(a.profile.OfferErrorSelector, func(e *colly.HTMLElement) {
			if text := collapseSpaces(e.Text); text != "" && rejection == "" {
				rejection = text
			}
		})
	}

	if err := a.wait(ctx); err != nil {
		return err
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", contentType)
	if err := c.Request(http.MethodPost, form.action, body, nil, hdr); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubmissionFailure, err)
	}
	if rejection != "" {
		return fmt.Errorf("%w: portal rejected offer: %s", domain.ErrSubmissionFailure, rejection)
	}
	return nil
}

// Close drops the session cookies. The adapter cannot be used afterwards.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.loggedIn = false
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	a.collector.SetCookieJar(jar)
	return nil
}

func (a *Adapter) ready() error {
	if a.closed {
		return errClosed
	}
	if !a.loggedIn {
		return errNotLoggedIn
	}
	return nil
}

func (a *Adapter) attachmentField(kind domain.AttachmentKind) string {
	switch kind {
	case domain.AttachmentImage:
		return a.profile.ImageField
	case domain.AttachmentDatasheet:
		return a.profile.DatasheetField
	default:
		return ""
	}
}

// wait blocks on the portal rate limiter; it fails when ctx is done
func (a *Adapter) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

type htmlForm struct {
	action string
	fields map[string]string
}

// loadForm visits pageURL and captures the first form matching selector:
// its absolute action and the current values of its inputs.
func (a *Adapter) loadForm(ctx context.Context, pageURL, selector string) (*htmlForm, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	c := a.collector.Clone()
	var form *htmlForm
	c.OnHTML(selector, func(e *colly.HTMLElement) {
		if form != nil {
			return
		}
		action := e.Attr("action")
		if action == "" {
			action = e.Request.URL.String()
		} else {
			action = e.Request.AbsoluteURL(action)
		}
		form = &htmlForm{action: action, fields: formValues(e)}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("load %s: %w", pageURL, err)
	}
	if form == nil {
		return nil, fmt.Errorf("%w: %q on %s", errFormNotFound, selector, pageURL)
	}
	return form, nil
}

// formValues collects what a browser would submit for the form as loaded
func formValues(e *colly.HTMLElement) map[string]string {
	fields := make(map[string]string)
	e.ForEach("input[name]", func(_ int, in *colly.HTMLElement) {
		switch strings.ToLower(in.Attr("type")) {
		case "file", "submit", "button", "image", "reset":
			return
		case "checkbox", "radio":
			if _, checked := in.DOM.Attr("checked"); !checked {
				return
			}
		}
		fields[in.Attr("name")] = in.Attr("value")
	})
	e.ForEach("textarea[name]", func(_ int, ta *colly.HTMLElement) {
		fields[ta.Attr("name")] = ta.Text
	})
	return fields
}

func setField(fields map[string]string, name, value string) {
	if name != "" {
		fields[name] = value
	}
}

type upload struct {
	field      string
	attachment domain.Attachment
	err        error
}

// encodeMultipart builds a multipart/form-data body with fields and file uploads.
// Files that no longer exist are left out and returned as skipped.
func encodeMultipart(fields map[string]string, uploads []upload) (io.Reader, string, []upload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", nil, err
		}
	}

	var skipped []upload
	for _, up := range uploads {
		err := writeFile(w, up.field, up.attachment.Path)
		if errors.Is(err, fs.ErrNotExist) {
			up.err = fmt.Errorf("%w: %v", domain.ErrAttachmentMissing, err)
			skipped = append(skipped, up)
			continue
		}
		if err != nil {
			return nil, "", nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", nil, err
	}
	return &buf, w.FormDataContentType(), skipped, nil
}

func writeFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
