// Package export builds the weekly vault activity report and uploads it to
// object storage. The report carries entry metadata only; stored secrets are
// never decrypted or included.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mvolkovs/passvault/internal/logging"
	"github.com/mvolkovs/passvault/internal/server/models"
)

// reportPeriod is how far back each report reaches.
const reportPeriod = 7 * 24 * time.Hour

// EntrySource yields the entries created in a time window.
type EntrySource interface {
	ListCreatedSince(ctx context.Context, since time.Time) ([]*models.VaultEntry, error)
}

// ObjectStore uploads a finished report.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
}

// ReportRow is one line of the weekly report.
type ReportRow struct {
	Owner       string    `json:"owner"`
	WebsiteName string    `json:"website_name"`
	WebsiteURL  string    `json:"website_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reporter assembles and uploads weekly reports.
type Reporter struct {
	source EntrySource
	store  ObjectStore
	logger logging.Logger
}

func NewReporter(source EntrySource, store ObjectStore, logger logging.Logger) *Reporter {
	return &Reporter{
		source: source,
		store:  store,
		logger: logger.With("module", "export"),
	}
}

// Run builds the report for the week ending at now and uploads it. It
// returns the object key the report was stored under. An empty week still
// produces a report.
func (r *Reporter) Run(ctx context.Context, now time.Time) (string, error) {
	since := now.Add(-reportPeriod)

	entries, err := r.source.ListCreatedSince(ctx, since)
	if err != nil {
		return "", fmt.Errorf("collect entries: %w", err)
	}

	rows := make([]ReportRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, ReportRow{
			Owner:       entry.Owner,
			WebsiteName: entry.SiteName,
			WebsiteURL:  entry.SiteURL,
			CreatedAt:   entry.CreatedAt,
		})
	}

	body, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := fmt.Sprintf("weekly_data/password_data_%s_to_%s.json",
		since.Format("2006-01-02"), now.Format("2006-01-02"))

	if err := r.store.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}

	r.logger.Info(ctx, "weekly report uploaded", "key", key, "rows", len(rows))
	return key, nil
}
