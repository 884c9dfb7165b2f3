package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/weatherbot/internal/domain"
)

const (
	readingsPrefix = "readings/"
	reportsPrefix  = "reports/"
)

// Archiver writes end-of-day temperature journals and session reports as
// JSON objects, laid out as readings/{city}/{date}.json and
// reports/{date}/{started}.json.
type Archiver struct {
	writer *Writer
	reader *Reader
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the client's bucket.
func NewArchiver(c *Client, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: NewWriter(c),
		reader: NewReader(c),
		logger: logger.With(slog.String("component", "archiver")),
	}
}

func readingsKey(city string, date time.Time) string {
	return readingsPrefix + city + "/" + date.Format("2006-01-02") + ".json"
}

// WriteReadings stores a day's observed temperature samples for a city.
func (a *Archiver) WriteReadings(ctx context.Context, city string, date time.Time, readings []domain.TemperatureReading) error {
	payload, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("s3blob: marshal readings: %w", err)
	}
	key := readingsKey(city, date)
	if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return err
	}
	a.logger.Info("readings archived",
		slog.String("key", key),
		slog.Int("count", len(readings)))
	return nil
}

// Readings loads the archived samples for a city and date.
func (a *Archiver) Readings(ctx context.Context, city string, date time.Time) ([]domain.TemperatureReading, error) {
	data, err := a.reader.Get(ctx, readingsKey(city, date))
	if err != nil {
		return nil, err
	}
	var readings []domain.TemperatureReading
	if err := json.Unmarshal(data, &readings); err != nil {
		return nil, fmt.Errorf("s3blob: unmarshal readings: %w", err)
	}
	return readings, nil
}

// WriteSessionReport stores a session summary under the session's start time.
func (a *Archiver) WriteSessionReport(ctx context.Context, startedAt time.Time, report any) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal session report: %w", err)
	}
	key := reportsPrefix + startedAt.Format("2006-01-02") + "/" + startedAt.Format("150405") + ".json"
	if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/json"); err != nil {
		return err
	}
	a.logger.Info("session report archived", slog.String("key", key))
	return nil
}

// ListReports returns the archived report keys for a calendar day.
func (a *Archiver) ListReports(ctx context.Context, date time.Time) ([]string, error) {
	return a.reader.List(ctx, reportsPrefix+date.Format("2006-01-02")+"/")
}
