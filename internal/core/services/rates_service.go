package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/agora/backend/internal/core/ports"
	"github.com/agora/backend/internal/domain"
	"github.com/agora/backend/internal/infrastructure/logger"
)

const defaultExchangeRate = 1.0

// RatesService refreshes the pricing exchange rate on its own low-frequency
// timer, decoupled from the engine heartbeat.
type RatesService struct {
	settings ports.SystemSettingRepository
	source   ports.RateSource
	logger   *logger.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRatesService(settings ports.SystemSettingRepository, source ports.RateSource, log *logger.Logger, interval time.Duration) *RatesService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RatesService{
		settings: settings,
		source:   source,
		logger:   log,
		interval: interval,
	}
}

func (s *RatesService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Refresh once at startup so a fresh deployment has a rate on hand
		s.Refresh(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()
}

func (s *RatesService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Refresh pulls the current rate from the source and stores it. A source
// failure keeps the previously stored rate.
func (s *RatesService) Refresh(ctx context.Context) {
	rate, err := s.source.CurrentRate(ctx)
	if err != nil {
		s.logger.Warnw("rates_refresh_failed", "error", err)
		return
	}
	setting := &domain.SystemSetting{
		Key:      domain.SettingExchangeRate,
		Value:    strconv.FormatFloat(rate, 'f', -1, 64),
		Type:     "float",
		Category: "pricing",
	}
	if err := s.settings.Set(ctx, setting); err != nil {
		s.logger.Errorw("rates_store_failed", "error", err)
		return
	}
	s.logger.Infow("rates_refresh_ok", "rate", rate)
}

// Current returns the stored exchange rate, falling back to the default when
// no rate has been stored yet.
func (s *RatesService) Current(ctx context.Context) float64 {
	setting, err := s.settings.Get(ctx, domain.SettingExchangeRate)
	if err != nil || setting == nil {
		return defaultExchangeRate
	}
	rate, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil || rate <= 0 {
		return defaultExchangeRate
	}
	return rate
}
