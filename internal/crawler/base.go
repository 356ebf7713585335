package crawler

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ppbooks/noveltybot/helpers"
	"ppbooks/noveltybot/logger"
	apperrors "ppbooks/noveltybot/pkg/errors"
	"ppbooks/noveltybot/services/cache"
)

// BaseCrawler provides fetching and parsing shared by the listing and detail crawlers
type BaseCrawler struct {
	Fetcher   helpers.PageFetcher
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	Selectors Selectors
	log       *logger.Logger
}

func newBaseCrawler(name string, config CrawlerConfig, fetcher helpers.PageFetcher, cacheSvc cache.CacheService) BaseCrawler {
	selectors := config.Selectors
	if selectors == (Selectors{}) {
		selectors = DefaultSelectors
	}
	return BaseCrawler{
		Fetcher:   fetcher,
		CacheKey:  config.CacheKey,
		CacheSvc:  cacheSvc,
		BlockTime: config.BlockTime,
		Selectors: selectors,
		log:       logger.ForCrawler(name),
	}
}

func (c *BaseCrawler) guarded() bool {
	return c.CacheSvc != nil && c.CacheKey != "" && c.BlockTime > 0
}

// fetchWithCache fetches a URL unless the site recently rate limited us
func (c *BaseCrawler) fetchWithCache(ctx context.Context, pageURL string) (io.Reader, error) {
	if c.guarded() {
		if _, err := c.CacheSvc.Get(c.CacheKey); err == nil {
			return nil, apperrors.New(apperrors.ErrorTypeRateLimit, pageURL, fmt.Sprintf("%s: requests blocked for up to %s", c.CacheKey, c.BlockTime), nil)
		}
	}

	body, err := c.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if c.guarded() && apperrors.IsRateLimit(err) {
			seconds := strconv.Itoa(int(c.BlockTime / time.Second))
			if cacheErr := c.CacheSvc.Set(c.CacheKey, []byte(seconds), c.BlockTime); cacheErr != nil {
				c.log.Warn().Err(cacheErr).Str("key", c.CacheKey).Msg("Failed to store rate-limit block")
			} else {
				c.log.Warn().Str("key", c.CacheKey).Str("block", c.BlockTime.String()).Msg("Rate limited, blocking further requests")
			}
		}
		return nil, err
	}

	return body, nil
}

// createDocument creates a goquery document from a reader and remembers its URL
func (c *BaseCrawler) createDocument(reader io.Reader, pageURL string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, apperrors.NewParsing(pageURL, "HTML parsing failed", err)
	}
	if u, err := url.Parse(pageURL); err == nil {
		doc.Url = u
	}
	return doc, nil
}

// resolve turns a possibly relative reference into an absolute URL for doc
func resolve(doc *goquery.Document, ref string) string {
	if doc == nil || doc.Url == nil {
		return helpers.ResolveURL("", ref)
	}
	return helpers.ResolveURL(doc.Url.String(), ref)
}
