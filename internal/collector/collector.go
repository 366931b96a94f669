// Package collector scrapes public breach-notification portals into the
// curated event CSV format. Collected rows are candidates for the curated
// dataset, not direct pipeline input; an analyst reviews and assigns
// tickers before a row enters the study sample.
package collector

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/crypto/blake2b"

	"breachstudy/internal/dataset"
)

// Config controls a collection run.
type Config struct {
	// PortalURL is the listing page of the breach-notification portal.
	PortalURL string

	// TableSelector locates the notification table on the page.
	TableSelector string

	// NextSelector locates the pagination link, empty for single-page portals.
	NextSelector string

	// MaxPages bounds pagination, zero means scrape until no next link.
	MaxPages int

	// From and To bound disclosure dates; zero values disable the bound.
	From time.Time
	To   time.Time

	// Source labels collected rows, e.g. the portal's short name.
	Source string

	// Headless toggles the browser window, on by default.
	Headless bool
}

// Collector drives a headless browser over a notification portal.
type Collector struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a collector.
func New(cfg Config, logger *slog.Logger) *Collector {
	if cfg.TableSelector == "" {
		cfg.TableSelector = "table"
	}
	return &Collector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "collector")),
	}
}

// portalRow is the raw shape extracted from one table row.
type portalRow struct {
	Organization string `json:"organization"`
	Reported     string `json:"reported"`
	BreachType   string `json:"breach_type"`
	Affected     string `json:"affected"`
}

// Collect scrapes the portal and returns normalized events, newest first as
// portals typically list them. Rows that cannot be parsed are logged and
// skipped rather than failing the run.
func (c *Collector) Collect(ctx context.Context) ([]dataset.BreachEvent, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	c.logger.InfoContext(ctx, "starting collection",
		slog.String("portal", c.cfg.PortalURL))

	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(c.cfg.PortalURL),
		chromedp.WaitVisible(c.cfg.TableSelector, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("open portal: %w", err)
	}

	var events []dataset.BreachEvent
	for page := 1; ; page++ {
		rows, err := c.scrapePage(browserCtx)
		if err != nil {
			return nil, fmt.Errorf("scrape page %d: %w", page, err)
		}

		parsed := c.parseRows(ctx, rows)
		events = append(events, parsed...)
		c.logger.InfoContext(ctx, "page scraped",
			slog.Int("page", page),
			slog.Int("rows", len(rows)),
			slog.Int("kept", len(parsed)))

		if c.cfg.NextSelector == "" {
			break
		}
		if c.cfg.MaxPages > 0 && page >= c.cfg.MaxPages {
			break
		}

		var hasNext bool
		err = chromedp.Run(browserCtx, chromedp.Evaluate(
			fmt.Sprintf(`document.querySelector(%q) !== null`, c.cfg.NextSelector), &hasNext))
		if err != nil || !hasNext {
			break
		}
		if err := chromedp.Run(browserCtx,
			chromedp.Click(c.cfg.NextSelector, chromedp.ByQuery),
			chromedp.WaitVisible(c.cfg.TableSelector, chromedp.ByQuery),
		); err != nil {
			return nil, fmt.Errorf("advance to page %d: %w", page+1, err)
		}
	}

	c.logger.InfoContext(ctx, "collection finished",
		slog.Int("events", len(events)))
	return events, nil
}

func (c *Collector) scrapePage(browserCtx context.Context) ([]portalRow, error) {
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%q + ' tbody tr')).map(tr => {
		const cells = tr.querySelectorAll('td');
		if (cells.length < 2) return null;
		return {
			organization: cells[0].innerText.trim(),
			reported: cells[1] ? cells[1].innerText.trim() : '',
			breach_type: cells[2] ? cells[2].innerText.trim() : '',
			affected: cells[3] ? cells[3].innerText.trim() : ''
		};
	}).filter(Boolean)`, c.cfg.TableSelector)

	var rows []portalRow
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(js, &rows)); err != nil {
		return nil, err
	}
	return rows, nil
}

// Portal date formats seen in the wild.
var portalDateLayouts = []string{"01/02/2006", "2006-01-02", "January 2, 2006", "Jan 2, 2006"}

func (c *Collector) parseRows(ctx context.Context, rows []portalRow) []dataset.BreachEvent {
	events := make([]dataset.BreachEvent, 0, len(rows))
	for _, row := range rows {
		event, err := c.parseRow(row)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping unparseable row",
				slog.String("organization", row.Organization),
				slog.String("error", err.Error()))
			continue
		}
		if !c.inRange(event.DisclosureDate) {
			continue
		}
		events = append(events, event)
	}
	return events
}

func (c *Collector) parseRow(row portalRow) (dataset.BreachEvent, error) {
	org := strings.TrimSpace(row.Organization)
	if org == "" {
		return dataset.BreachEvent{}, fmt.Errorf("empty organization")
	}

	var reported time.Time
	var err error
	for _, layout := range portalDateLayouts {
		if reported, err = time.Parse(layout, row.Reported); err == nil {
			break
		}
	}
	if err != nil {
		return dataset.BreachEvent{}, fmt.Errorf("reported date %q: %w", row.Reported, err)
	}

	var affected int64
	if raw := strings.ReplaceAll(strings.TrimSpace(row.Affected), ",", ""); raw != "" && raw != "Unknown" {
		if _, err := fmt.Sscanf(raw, "%d", &affected); err != nil {
			affected = 0
		}
	}

	return dataset.BreachEvent{
		EventID:         EventID(c.cfg.Source, org, reported),
		Organization:    org,
		DisclosureDate:  reported,
		BreachType:      strings.ToLower(strings.TrimSpace(row.BreachType)),
		RecordsAffected: affected,
		Severity:        dataset.SeverityUnknown,
		Source:          c.cfg.Source,
	}, nil
}

func (c *Collector) inRange(t time.Time) bool {
	if !c.cfg.From.IsZero() && t.Before(c.cfg.From) {
		return false
	}
	if !c.cfg.To.IsZero() && t.After(c.cfg.To) {
		return false
	}
	return true
}

// EventID derives a stable identifier from the source, organization and
// reported date so re-running a collection never mints new IDs for rows
// already collected.
func EventID(source, organization string, reported time.Time) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s|%s|%s",
		strings.ToLower(source),
		strings.ToLower(strings.TrimSpace(organization)),
		reported.Format("2006-01-02"))
	sum := h.Sum(nil)
	return "col-" + hex.EncodeToString(sum[:8])
}

// MergeNew appends collected events that are not already present in
// existing, matching on event ID. Order of existing rows is preserved.
func MergeNew(existing, collected []dataset.BreachEvent) ([]dataset.BreachEvent, int) {
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		seen[existing[i].EventID] = true
	}

	merged := existing
	added := 0
	for i := range collected {
		if seen[collected[i].EventID] {
			continue
		}
		seen[collected[i].EventID] = true
		merged = append(merged, collected[i])
		added++
	}
	return merged, added
}
