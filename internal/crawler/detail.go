package crawler

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ppbooks/noveltybot/helpers"
	"ppbooks/noveltybot/services/cache"
)

// fallbackImageAttrs are the image attributes that can carry a full-size picture
var fallbackImageAttrs = map[string]bool{"data-large_image": true, "srcset": true}

// DetailCrawler fetches product pages and extracts title, price and image
type DetailCrawler struct {
	BaseCrawler
}

// NewDetailCrawler creates a detail page crawler
func NewDetailCrawler(config CrawlerConfig, fetcher helpers.PageFetcher, cacheSvc cache.CacheService) *DetailCrawler {
	return &DetailCrawler{
		BaseCrawler: newBaseCrawler("detail", config, fetcher, cacheSvc),
	}
}

// FetchDetails fetches the item's detail page. The fallback image is only
// looked up when the listing did not provide a thumbnail.
func (c *DetailCrawler) FetchDetails(ctx context.Context, item ListingItem) (*ProductDetails, error) {
	body, err := c.fetchWithCache(ctx, item.DetailURL)
	if err != nil {
		return nil, err
	}

	doc, err := c.createDocument(body, item.DetailURL)
	if err != nil {
		return nil, err
	}

	details := &ProductDetails{
		Title:    ExtractTitle(doc, c.Selectors),
		Price:    ExtractPrice(doc, c.Selectors),
		ImageURL: strings.TrimSpace(item.ThumbnailURL),
	}

	if details.ImageURL == "" {
		if image, ok := ExtractFallbackImage(doc, c.Selectors); ok {
			details.ImageURL = resolve(doc, image)
			c.log.Debug().Str("url", item.DetailURL).Str("image", details.ImageURL).Msg("Using fallback image from detail page")
		}
	}

	return details, nil
}

// ExtractTitle returns the trimmed text of the first heading
func ExtractTitle(doc *goquery.Document, selectors Selectors) string {
	title := strings.TrimSpace(doc.Find(selectors.Title).First().Text())
	if title == "" {
		return TitleNotFound
	}
	return title
}

// ExtractPrice returns the trimmed text of the first price amount node
func ExtractPrice(doc *goquery.Document, selectors Selectors) string {
	price := strings.TrimSpace(doc.Find(selectors.Price).First().Text())
	if price == "" {
		return PriceNotFound
	}
	return price
}

// ExtractFallbackImage finds the first image carrying a non-empty large-image
// or srcset attribute. When a tag has both, the one written last in the markup
// wins. For a srcset the last candidate is used, without its descriptor.
func ExtractFallbackImage(doc *goquery.Document, selectors Selectors) (string, bool) {
	var image string
	doc.Find(selectors.FallbackImage).EachWithBreak(func(_ int, img *goquery.Selection) bool {
		image = lastImageAttr(img)
		return image == ""
	})

	if image == "" {
		return "", false
	}
	return image, true
}

func lastImageAttr(img *goquery.Selection) string {
	var image string
	for _, attr := range img.Nodes[0].Attr {
		if !fallbackImageAttrs[strings.ToLower(attr.Key)] {
			continue
		}
		if candidate := helpers.LastSrcsetCandidate(strings.TrimSpace(attr.Val)); candidate != "" {
			image = candidate
		}
	}
	return image
}
