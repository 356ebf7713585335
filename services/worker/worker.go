package worker

import (
	"context"
	"fmt"
	"time"

	"ppbooks/noveltybot/internal/crawler"
	"ppbooks/noveltybot/logger"
	"ppbooks/noveltybot/services/ledger"
	"ppbooks/noveltybot/services/notifier"
)

// Summary counts what a single pass did
type Summary struct {
	Listed        int
	SkippedEmpty  int
	SkippedSeen   int
	DetailFailed  int
	Sent          int
	NotifyErrors  int
	ListingFailed bool
	LedgerSaved   bool
	LedgerError   bool
	Duration      time.Duration
}

// Degraded reports whether part of the run failed
func (s Summary) Degraded() bool {
	return s.ListingFailed || s.DetailFailed > 0 || s.NotifyErrors > 0 || s.LedgerError
}

// Worker drives one pass of the listing → detail → notify pipeline
type Worker struct {
	listing   crawler.ListingSource
	details   crawler.DetailSource
	ledger    ledger.Ledger
	notifier  notifier.Notifier
	itemDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration)
	log       *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(
	listing crawler.ListingSource,
	details crawler.DetailSource,
	l ledger.Ledger,
	n notifier.Notifier,
	itemDelay time.Duration,
) *Worker {
	return &Worker{
		listing:   listing,
		details:   details,
		ledger:    l,
		notifier:  n,
		itemDelay: itemDelay,
		sleep:     sleepContext,
		log:       logger.ForWorker(),
	}
}

// Run performs a single pass. Failures are logged and counted, never returned.
func (w *Worker) Run(ctx context.Context) Summary {
	start := time.Now()
	summary := w.run(ctx)
	summary.Duration = time.Since(start)

	event := w.log.Info()
	if summary.Degraded() {
		event = w.log.Warn()
	}
	event.
		Int("listed", summary.Listed).
		Int("skipped_empty", summary.SkippedEmpty).
		Int("skipped_seen", summary.SkippedSeen).
		Int("detail_failed", summary.DetailFailed).
		Int("sent", summary.Sent).
		Int("notify_errors", summary.NotifyErrors).
		Bool("listing_failed", summary.ListingFailed).
		Bool("ledger_saved", summary.LedgerSaved).
		Bool("ledger_error", summary.LedgerError).
		Dur("elapsed", summary.Duration).
		Msg("Run finished")

	return summary
}

func (w *Worker) run(ctx context.Context) Summary {
	var summary Summary

	items, err := w.listing.FetchListing(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to fetch the novelty listing")
		summary.ListingFailed = true
		return summary
	}
	summary.Listed = len(items)
	if len(items) == 0 {
		w.log.Info().Msg("No new arrivals found on the listing")
		return summary
	}

	seen, err := w.ledger.Load(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to load ledger, skipping notifications for this run")
		summary.LedgerError = true
		return summary
	}

	sent := ledger.NewURLSet()
	for _, item := range items {
		if ctx.Err() != nil {
			w.log.Warn().Err(ctx.Err()).Msg("Run cancelled, stopping before the next item")
			break
		}

		if item.DetailURL == "" {
			summary.SkippedEmpty++
			continue
		}
		if seen.Has(item.DetailURL) || sent.Has(item.DetailURL) {
			summary.SkippedSeen++
			continue
		}

		if !w.processItem(ctx, item, &summary) {
			continue
		}

		sent.Add(item.DetailURL)
		w.sleep(ctx, w.itemDelay)
	}

	if sent.Len() == 0 {
		return summary
	}

	// items already notified must be recorded even if the run was interrupted
	if err := w.ledger.Save(context.WithoutCancel(ctx), seen.Union(sent)); err != nil {
		w.log.Error().Err(err).Int("new_urls", sent.Len()).
			Msg("Failed to save ledger, these items may be notified again next run")
		summary.LedgerError = true
		return summary
	}
	summary.LedgerSaved = true

	return summary
}

// processItem fetches, extracts and notifies a single item. It returns true
// once the notify step ran, which is when the item is recorded in the ledger.
// Only a successful notify counts towards Sent.
func (w *Worker) processItem(ctx context.Context, item crawler.ListingItem, summary *Summary) (notified bool) {
	log := w.log.WithField("url", item.DetailURL)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Err(fmt.Errorf("panic: %v", r)).Msg("Item processing panicked, skipping")
			summary.DetailFailed++
			notified = false
		}
	}()

	details, err := w.details.FetchDetails(ctx, item)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch detail page, skipping item")
		summary.DetailFailed++
		return false
	}

	err = w.notifier.Notify(ctx, notifier.Notification{
		ItemURL:  item.DetailURL,
		Title:    details.Title,
		Price:    details.Price,
		ImageURL: details.ImageURL,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to send notification")
		summary.NotifyErrors++
	} else {
		summary.Sent++
	}

	return true
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
