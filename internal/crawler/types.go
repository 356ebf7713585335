package crawler

import (
	"context"
	"time"
)

// Sentinels substituted when the detail page lacks the expected element
const (
	TitleNotFound = "Назву не вдалося знайти"
	PriceNotFound = "Ціна не знайдена"
)

// ListingItem is one product card from the novelty listing, in page order
type ListingItem struct {
	DetailURL    string `json:"detail_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// ProductDetails is what the detail page yields for a single item
type ProductDetails struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	ImageURL string `json:"image_url,omitempty"`
}

// HasImage reports whether a usable image URL was resolved
func (d ProductDetails) HasImage() bool {
	return d.ImageURL != ""
}

// ListingSource yields the product cards of the novelty listing
type ListingSource interface {
	FetchListing(ctx context.Context) ([]ListingItem, error)
}

// DetailSource fetches and extracts a single product page
type DetailSource interface {
	FetchDetails(ctx context.Context, item ListingItem) (*ProductDetails, error)
}

// Selectors contains CSS selectors for the listing and detail pages
type Selectors struct {
	ItemList      string
	Link          string
	Thumbnail     string
	Title         string
	Price         string
	FallbackImage string
}

// DefaultSelectors match the WooCommerce/WoodMart markup of pp-books.com.ua
var DefaultSelectors = Selectors{
	ItemList:      "div.product-element-top.wd-quick-shop",
	Link:          "a[href]",
	Thumbnail:     "img",
	Title:         "h1",
	Price:         "p.price span.woocommerce-Price-amount bdi",
	FallbackImage: "img[data-large_image], img[srcset]",
}

// CrawlerConfig contains configuration for a crawler
type CrawlerConfig struct {
	URL       string
	CacheKey  string
	BlockTime time.Duration
	Selectors Selectors
}
