// Package analytics aggregates stored alerts and readings for dashboards.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/good-yellow-bee/vitalguard/internal/models"
	"github.com/good-yellow-bee/vitalguard/internal/storage"
)

// AlertLister is the alert read port used for aggregation.
type AlertLister interface {
	List(ctx context.Context, filter storage.AlertFilter) ([]*models.Alert, int64, error)
}

// ReadingLister is the reading read port used for aggregation.
type ReadingLister interface {
	List(ctx context.Context, filter storage.ReadingFilter) ([]*models.Reading, int64, error)
}

// Window narrows aggregation to one device and/or a time range. Zero values
// mean unbounded.
type Window struct {
	DeviceID string
	From     time.Time
	To       time.Time
}

// AlertStats summarizes alerts in a window.
type AlertStats struct {
	Total                      int64            `json:"total"`
	Active                     int64            `json:"active"`
	ByStatus                   map[string]int64 `json:"byStatus"`
	BySeverity                 map[string]int64 `json:"bySeverity"`
	ByType                     map[string]int64 `json:"byType"`
	AverageResponseTimeSeconds *float64         `json:"averageResponseTimeSeconds,omitempty"`
	AcknowledgedCount          int64            `json:"acknowledgedCount"`
}

// VitalStats is the distribution of one vital sign.
type VitalStats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// ReadingStats summarizes readings in a window. A vital with no samples is
// omitted.
type ReadingStats struct {
	Total           int64       `json:"total"`
	HeartRate       *VitalStats `json:"heartRate,omitempty"`
	SpO2            *VitalStats `json:"spO2,omitempty"`
	BodyTemperature *VitalStats `json:"bodyTemperature,omitempty"`
	Battery         *VitalStats `json:"battery,omitempty"`
	FallsDetected   int64       `json:"fallsDetected"`
	First           *time.Time  `json:"first,omitempty"`
	Last            *time.Time  `json:"last,omitempty"`
}

// Service computes aggregates from the stores.
type Service struct {
	alerts   AlertLister
	readings ReadingLister
}

// NewService creates an analytics service.
func NewService(alerts AlertLister, readings ReadingLister) *Service {
	return &Service{alerts: alerts, readings: readings}
}

// AlertStats aggregates every alert in w.
func (s *Service) AlertStats(ctx context.Context, w Window) (*AlertStats, error) {
	alerts, _, err := s.alerts.List(ctx, storage.AlertFilter{
		DeviceID: w.DeviceID,
		From:     w.From,
		To:       w.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return SummarizeAlerts(alerts), nil
}

// ReadingStats aggregates every reading in w.
func (s *Service) ReadingStats(ctx context.Context, w Window) (*ReadingStats, error) {
	readings, _, err := s.readings.List(ctx, storage.ReadingFilter{
		DeviceID: w.DeviceID,
		From:     w.From,
		To:       w.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	return SummarizeReadings(readings), nil
}

// SummarizeAlerts aggregates alerts in memory.
func SummarizeAlerts(alerts []*models.Alert) *AlertStats {
	stats := &AlertStats{
		ByStatus:   make(map[string]int64),
		BySeverity: make(map[string]int64),
		ByType:     make(map[string]int64),
	}

	var responseTotal int64
	for _, a := range alerts {
		stats.Total++
		stats.ByStatus[string(a.Status)]++
		stats.BySeverity[string(a.Severity)]++
		stats.ByType[string(a.Type)]++
		if a.Status == models.AlertStatusActive {
			stats.Active++
		}
		if rt := a.Response.ResponseTimeSeconds; rt != nil {
			stats.AcknowledgedCount++
			responseTotal += *rt
		}
	}

	if stats.AcknowledgedCount > 0 {
		avg := round2(float64(responseTotal) / float64(stats.AcknowledgedCount))
		stats.AverageResponseTimeSeconds = &avg
	}
	return stats
}

// accumulator tracks min, max and mean of a stream of samples.
type accumulator struct {
	count    int64
	min, max float64
	sum      float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) stats() *VitalStats {
	if a.count == 0 {
		return nil
	}
	return &VitalStats{
		Count: a.count,
		Min:   a.min,
		Max:   a.max,
		Avg:   round2(a.sum / float64(a.count)),
	}
}

// SummarizeReadings aggregates readings in memory.
func SummarizeReadings(readings []*models.Reading) *ReadingStats {
	var hr, spo2, temp, battery accumulator
	stats := &ReadingStats{}

	for _, r := range readings {
		stats.Total++
		if r.HeartRate != nil {
			hr.add(r.HeartRate.Value)
		}
		if r.SpO2 != nil {
			spo2.add(r.SpO2.Value)
		}
		if r.BodyTemperature != nil {
			temp.add(r.BodyTemperature.Value)
		}
		if level, ok := r.Battery(); ok {
			battery.add(level)
		}
		if r.Motion != nil && r.Motion.FallDetected {
			stats.FallsDetected++
		}

		ts := r.Timestamp
		if stats.First == nil || ts.Before(*stats.First) {
			stats.First = &ts
		}
		if stats.Last == nil || ts.After(*stats.Last) {
			last := ts
			stats.Last = &last
		}
	}

	stats.HeartRate = hr.stats()
	stats.SpO2 = spo2.stats()
	stats.BodyTemperature = temp.stats()
	stats.Battery = battery.stats()
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
