package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/incidentwire/incidentwire/pkg/types"
)

// HTMLSource discovers and fetches items from a selector-configured website.
// Outbound requests are throttled per source so a wide fetch pool cannot
// hammer a single site.
type HTMLSource struct {
	def     Definition
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTMLSource builds a source from its definition. A zero rate disables
// throttling.
func NewHTMLSource(def Definition) *HTMLSource {
	limit := rate.Inf
	if def.RatePerSecond > 0 {
		limit = rate.Limit(def.RatePerSecond)
	}
	return &HTMLSource{
		def:     def,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name implements Source.
func (s *HTMLSource) Name() string { return s.def.Name }

// Discover implements Source. The search URL's {query} placeholder is
// replaced with the escaped query phrase.
func (s *HTMLSource) Discover(ctx context.Context, q types.Query) ([]types.SourceItem, error) {
	searchURL := strings.ReplaceAll(s.def.SearchURL, "{query}", url.QueryEscape(q.Phrase))

	doc, err := s.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, s.def.Name, err)
	}

	base, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, s.def.Name, err)
	}

	var items []types.SourceItem
	doc.Find(s.def.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		link := sel
		if s.def.LinkSelector != "" {
			link = sel.Find(s.def.LinkSelector).First()
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		locator := base.ResolveReference(ref).String()

		title := strings.TrimSpace(link.Text())
		if s.def.TitleSelector != "" {
			title = strings.TrimSpace(sel.Find(s.def.TitleSelector).First().Text())
		}

		items = append(items, types.SourceItem{
			ID:         CanonicalID(locator),
			SourceName: s.def.Name,
			Locator:    locator,
			Title:      title,
		})
	})

	return items, nil
}

// Fetch implements Source, returning the text of the configured body
// selector, or the whole document text when no selector matches.
func (s *HTMLSource) Fetch(ctx context.Context, item types.SourceItem) (string, error) {
	doc, err := s.fetchDocument(ctx, item.Locator)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", item.Locator, err)
	}

	if s.def.BodySelector != "" {
		if body := doc.Find(s.def.BodySelector); body.Length() > 0 {
			return normalizeWhitespace(body.Text()), nil
		}
	}
	return normalizeWhitespace(doc.Find("body").Text()), nil
}

func (s *HTMLSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "incidentwire/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
