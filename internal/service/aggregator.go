package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V1nSky/url-shortener/internal/models"
)

const (
	defaultWindowDays  = 30
	defaultRecentLimit = 50
	topBreakdownLimit  = 10
)

// Aggregator computes summary statistics from stored click events.
// Reads are on demand with no caching: given unchanged data, repeated
// calls yield identical reports.
type Aggregator struct {
	clicks ClickStore
}

// NewAggregator creates an analytics aggregator.
func NewAggregator(clicks ClickStore) *Aggregator {
	return &Aggregator{clicks: clicks}
}

// Summarize builds the analytics report for a link.
//
// TotalClicks covers all time. Everything else is scoped to the last
// windowDays days: unique visitors by distinct IP hash, the per-day
// time series, and the breakdowns. Country and referer breakdowns are
// capped at 10 rows; device type and browser are uncapped. Events with
// the grouped field absent are excluded from that breakdown. Tie order
// within equal counts follows storage order and is not part of the
// contract.
func (a *Aggregator) Summarize(ctx context.Context, linkID uuid.UUID, windowDays int) (*models.Report, error) {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	since := time.Now().AddDate(0, 0, -windowDays)

	total, err := a.clicks.CountClicks(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}

	unique, err := a.clicks.CountUniqueVisitors(ctx, linkID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count unique visitors: %w", err)
	}

	byDate, err := a.clicks.ClicksPerDay(ctx, linkID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to build time series: %w", err)
	}

	countries, err := a.clicks.CountByDimension(ctx, linkID, DimensionCountry, since, topBreakdownLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build country breakdown: %w", err)
	}

	devices, err := a.clicks.CountByDimension(ctx, linkID, DimensionDevice, since, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build device breakdown: %w", err)
	}

	browsers, err := a.clicks.CountByDimension(ctx, linkID, DimensionBrowser, since, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build browser breakdown: %w", err)
	}

	referers, err := a.clicks.CountByDimension(ctx, linkID, DimensionReferer, since, topBreakdownLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build referer breakdown: %w", err)
	}

	return &models.Report{
		TotalClicks:    total,
		UniqueVisitors: unique,
		ClicksByDate:   byDate,
		TopCountries:   countries,
		TopDevices:     devices,
		TopBrowsers:    browsers,
		TopReferers:    referers,
	}, nil
}

// Recent returns the latest click events for a link, newest first.
func (a *Aggregator) Recent(ctx context.Context, linkID uuid.UUID, limit int) ([]models.ClickEvent, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	events, err := a.clicks.ListEvents(ctx, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list click events: %w", err)
	}
	return events, nil
}

// exportHeader is the column layout of exported analytics.
var exportHeader = []string{"Date", "Country", "City", "Browser", "OS", "Device", "Referer"}

// Export renders every click event for a link, all time, as CSV text:
// one row per event, newest first, absent fields rendered empty.
// Fields containing commas or quotes are quoted per RFC 4180, so
// referers and city names never shift columns.
func (a *Aggregator) Export(ctx context.Context, linkID uuid.UUID) (string, error) {
	events, err := a.clicks.ListEvents(ctx, linkID, 0)
	if err != nil {
		return "", fmt.Errorf("failed to list click events: %w", err)
	}

	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(exportHeader); err != nil {
		return "", fmt.Errorf("failed to write export header: %w", err)
	}
	for _, ev := range events {
		row := []string{
			ev.OccurredAt.UTC().Format(time.RFC3339),
			deref(ev.CountryCode),
			deref(ev.City),
			deref(ev.Browser),
			deref(ev.OS),
			deref(ev.DeviceType),
			deref(ev.Referer),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write export row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to render export: %w", err)
	}
	return b.String(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
