package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/idfflash/internal/core/domain"
	"github.com/custodia-labs/idfflash/internal/core/ports/driven"
	"github.com/custodia-labs/idfflash/internal/core/ports/driving"
	"github.com/custodia-labs/idfflash/internal/logger"
)

// Ensure PortService implements the interface.
var _ driving.PortService = (*PortService)(nil)

// PortService discovers serial ports and decides which one to use.
type PortService struct {
	enumerators []driven.PortEnumerator
	settings    driving.SettingsService
	selector    driven.PortSelector
}

// NewPortService creates a port service. Enumerators are tried in order;
// one returning domain.ErrNotImplemented is skipped.
func NewPortService(settings driving.SettingsService, enumerators ...driven.PortEnumerator) *PortService {
	return &PortService{
		enumerators: enumerators,
		settings:    settings,
	}
}

// SetSelector installs the interactive picker used when several ports match.
func (s *PortService) SetSelector(selector driven.PortSelector) {
	s.selector = selector
}

// List returns the ports passing filter.
func (s *PortService) List(ctx context.Context, filter domain.PortFilter) ([]domain.SerialPortInfo, error) {
	all, err := s.enumerate(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.SerialPortInfo
	for _, p := range all {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Select resolves the port to use.
func (s *PortService) Select(ctx context.Context, explicit string) (domain.SerialPortInfo, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return domain.SerialPortInfo{}, fmt.Errorf("load settings: %w", err)
	}

	if name := firstNonEmpty(explicit, settings.Serial.Port); name != "" {
		return s.lookup(ctx, name), nil
	}

	candidates, err := s.List(ctx, domain.PortFilter{USB: settings.Serial.USB})
	if err != nil {
		return domain.SerialPortInfo{}, err
	}

	switch len(candidates) {
	case 0:
		return domain.SerialPortInfo{}, domain.ErrNoSerialPorts
	case 1:
		logger.Debug("auto-detected serial port %s", candidates[0].Description())
		return candidates[0], nil
	}

	if s.selector == nil {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return domain.SerialPortInfo{}, fmt.Errorf("%w: several serial ports found (%s); choose one with --port",
			domain.ErrInvalidInput, strings.Join(names, ", "))
	}

	chosen, err := s.selector.Choose(ctx, candidates)
	if err != nil {
		return domain.SerialPortInfo{}, err
	}
	return chosen, nil
}

// lookup returns the enumerated details for name, or just the name when the
// port cannot be enumerated.
func (s *PortService) lookup(ctx context.Context, name string) domain.SerialPortInfo {
	all, err := s.enumerate(ctx)
	if err != nil {
		logger.Debug("enumerate ports: %v", err)
	}
	for _, p := range all {
		if p.Name == name {
			return p
		}
	}
	return domain.SerialPortInfo{Name: name}
}

func (s *PortService) enumerate(ctx context.Context) ([]domain.SerialPortInfo, error) {
	var lastErr error
	for _, e := range s.enumerators {
		ports, err := e.List(ctx)
		if err == nil {
			return ports, nil
		}
		if !errors.Is(err, domain.ErrNotImplemented) {
			logger.Debug("port enumerator failed: %v", err)
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("%w: no port enumerator", domain.ErrNotImplemented)
	}
	return nil, fmt.Errorf("list serial ports: %w", lastErr)
}
