package service

import (
	"context"
	"time"
)

const (
	DefaultForecastAlpha   = 0.5
	DefaultForecastHorizon = 7
	MaxForecastHorizon     = 30
)

// Forecaster predicts the next horizon values of a series.  It is kept
// behind an interface so the smoothing model can be swapped.
type Forecaster interface {
	Forecast(series []float64, horizon int) []float64
}

// SimpleExponential is single exponential smoothing: the forecast is the
// final smoothed level repeated over the horizon.
type SimpleExponential struct {
	Alpha float64
}

func (f SimpleExponential) Forecast(series []float64, horizon int) []float64 {
	out := make([]float64, horizon)
	if len(series) == 0 {
		return out
	}
	alpha := f.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultForecastAlpha
	}
	level := series[0]
	for _, x := range series[1:] {
		level = alpha*x + (1-alpha)*level
	}
	for i := range out {
		out[i] = round2(level)
	}
	return out
}

type ForecastPoint struct {
	Date             string  `json:"date"`
	ExpenditureCents float64 `json:"expenditure_cents"`
}

type Forecast struct {
	UserID   uint64          `json:"user_id"`
	Window   Window          `json:"window"`
	Horizon  int             `json:"horizon"`
	History  []DailyPoint    `json:"history"`
	Forecast []ForecastPoint `json:"forecast"`
}

// ForecastService projects a user's daily expenditure from the series
// produced by the usage aggregator.
type ForecastService struct {
	usage *UsageService
	model Forecaster
}

func NewForecastService(usage *UsageService, model Forecaster) *ForecastService {
	if model == nil {
		model = SimpleExponential{Alpha: DefaultForecastAlpha}
	}
	return &ForecastService{usage: usage, model: model}
}

func (s *ForecastService) Forecast(ctx context.Context, requesterID uint64, requesterRole string, userID uint64, w Window, horizon int) (Forecast, error) {
	if horizon == 0 {
		horizon = DefaultForecastHorizon
	}
	if horizon < 1 || horizon > MaxForecastHorizon {
		return Forecast{}, invalidf("horizon must be between 1 and %d", MaxForecastHorizon)
	}
	sum, err := s.usage.GetUserSummary(ctx, requesterID, requesterRole, userID, w, 1)
	if err != nil {
		return Forecast{}, err
	}
	series := make([]float64, len(sum.Daily))
	for i, p := range sum.Daily {
		series[i] = float64(p.ExpenditureCents)
	}
	values := s.model.Forecast(series, horizon)

	next := startOfDay(s.usage.now()).AddDate(0, 0, 1)
	if n := len(sum.Daily); n > 0 {
		if last, err := time.Parse(dateLayout, sum.Daily[n-1].Date); err == nil {
			next = last.AddDate(0, 0, 1)
		}
	}
	points := make([]ForecastPoint, len(values))
	for i, v := range values {
		points[i] = ForecastPoint{Date: next.AddDate(0, 0, i).Format(dateLayout), ExpenditureCents: v}
	}
	return Forecast{UserID: userID, Window: w, Horizon: horizon, History: sum.Daily, Forecast: points}, nil
}
