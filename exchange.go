package kalshi

import "context"

// ExchangeService reads exchange-wide state.
type ExchangeService struct {
	transport *transport
}

// ExchangeStatus reports whether the exchange and trading are live.
type ExchangeStatus struct {
	ExchangeActive bool `json:"exchange_active"`
	TradingActive  bool `json:"trading_active"`
}

func (s *ExchangeService) GetStatus(ctx context.Context) (*ExchangeStatus, error) {
	var resp ExchangeStatus
	if err := s.transport.get(ctx, apiPrefix+"/exchange/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DailySchedule is one day's open and close, exchange-local time.
type DailySchedule struct {
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// ExchangeSchedule is the standard trading week plus maintenance windows.
type ExchangeSchedule struct {
	StandardHours      map[string]DailySchedule `json:"standard_hours"`
	MaintenanceWindows []struct {
		StartDatetime string `json:"start_datetime"`
		EndDatetime   string `json:"end_datetime"`
	} `json:"maintenance_windows"`
}

func (s *ExchangeService) GetSchedule(ctx context.Context) (*ExchangeSchedule, error) {
	var resp struct {
		Schedule ExchangeSchedule `json:"schedule"`
	}
	if err := s.transport.get(ctx, apiPrefix+"/exchange/schedule", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Schedule, nil
}
