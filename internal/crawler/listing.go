package crawler

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ppbooks/noveltybot/helpers"
	"ppbooks/noveltybot/services/cache"
)

// lazyImageAttrs are consulted when a thumbnail's src is missing or a placeholder
var lazyImageAttrs = []string{"data-src", "data-lazy-src", "data-original"}

// ListingCrawler extracts product cards from the novelty listing page
type ListingCrawler struct {
	BaseCrawler
	URL string
}

// NewListingCrawler creates a crawler for the listing at config.URL
func NewListingCrawler(config CrawlerConfig, fetcher helpers.PageFetcher, cacheSvc cache.CacheService) *ListingCrawler {
	return &ListingCrawler{
		BaseCrawler: newBaseCrawler("listing", config, fetcher, cacheSvc),
		URL:         config.URL,
	}
}

// FetchListing fetches the listing page and extracts its items in page order
func (c *ListingCrawler) FetchListing(ctx context.Context) ([]ListingItem, error) {
	body, err := c.fetchWithCache(ctx, c.URL)
	if err != nil {
		return nil, err
	}

	items, err := c.parseListing(body, c.URL)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Int("items", len(items)).Str("url", c.URL).Msg("Listing parsed")
	return items, nil
}

func (c *ListingCrawler) parseListing(reader io.Reader, pageURL string) ([]ListingItem, error) {
	doc, err := c.createDocument(reader, pageURL)
	if err != nil {
		return nil, err
	}
	return ExtractListing(doc, c.Selectors), nil
}

// ExtractListing returns one ListingItem per product card. Missing links or
// images become empty strings rather than dropping the card.
func ExtractListing(doc *goquery.Document, selectors Selectors) []ListingItem {
	cards := doc.Find(selectors.ItemList)
	items := make([]ListingItem, 0, cards.Length())

	cards.Each(func(_ int, card *goquery.Selection) {
		items = append(items, ListingItem{
			DetailURL:    resolve(doc, firstHref(card, selectors.Link)),
			ThumbnailURL: resolve(doc, thumbnailSrc(card, selectors.Thumbnail)),
		})
	})

	return items
}

// firstHref returns the first non-empty href under card
func firstHref(card *goquery.Selection, selector string) string {
	var href string
	card.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href = strings.TrimSpace(a.AttrOr("href", ""))
		return href == ""
	})
	return href
}

// thumbnailSrc returns the source of the first image under card
func thumbnailSrc(card *goquery.Selection, selector string) string {
	img := card.Find(selector).First()
	if img.Length() == 0 {
		return ""
	}

	src := strings.TrimSpace(img.AttrOr("src", ""))
	if src != "" && !strings.HasPrefix(src, "data:") {
		return src
	}

	for _, attr := range lazyImageAttrs {
		if lazy := strings.TrimSpace(img.AttrOr(attr, "")); lazy != "" {
			return lazy
		}
	}

	return ""
}
