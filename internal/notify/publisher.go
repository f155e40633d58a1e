// Package notify fans seat lifecycle events out to logs, Redis and Kafka.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fairyhunter13/seat-reservation-service/internal/config"
	"github.com/fairyhunter13/seat-reservation-service/internal/model"
	"github.com/fairyhunter13/seat-reservation-service/internal/obs"
)

// Publisher delivers seat lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev model.SeatEvent) error
	Close() error
}

// LogPublisher writes each event to the structured log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev model.SeatEvent) error {
	obs.Logger.Info("seat_event",
		"type", ev.Type,
		"event_id", ev.EventID,
		"event_name", ev.EventName,
		"seat", ev.Seat,
		"hold_id", ev.HoldID,
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev model.SeatEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, model.SeatEvent) error { return nil }
func (Nop) Close() error                                 { return nil }

// New builds the sinks listed in cfg.Sinks (log, redis, kafka).
func New(ctx context.Context, cfg config.Publisher) (Publisher, error) {
	var sinks Multi
	for _, name := range cfg.Sinks {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
			continue
		case "log":
			sinks = append(sinks, LogPublisher{})
		case "redis":
			p, err := DialRedis(ctx, cfg.Redis)
			if err != nil {
				_ = sinks.Close()
				return nil, err
			}
			sinks = append(sinks, p)
		case "kafka":
			p, err := NewKafkaPublisher(cfg.Kafka)
			if err != nil {
				_ = sinks.Close()
				return nil, err
			}
			sinks = append(sinks, p)
		default:
			_ = sinks.Close()
			return nil, fmt.Errorf("unknown publisher sink %q", name)
		}
	}
	switch len(sinks) {
	case 0:
		return Nop{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}
