package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
	"github.com/klabast/wb-services/recycle-kalender/internal/geo"
	"github.com/klabast/wb-services/recycle-kalender/internal/recycleapp"
)

// AddressResolver turns an address into registry identifiers.
type AddressResolver interface {
	Resolve(ctx context.Context, addr geo.Address, format audit.Format) (geo.ResolvedAddress, error)
}

// EventFetcher retrieves the raw collection events for a resolved address.
type EventFetcher interface {
	Fetch(ctx context.Context, resolved geo.ResolvedAddress, addr geo.Address, window recycleapp.DateWindow, token string) ([]recycleapp.RawEvent, error)
}

// Schedule is the result of one successful pipeline run.
type Schedule struct {
	Address  geo.Address
	Resolved geo.ResolvedAddress
	Window   recycleapp.DateWindow
	Entries  []recycleapp.ScheduleEntry
}

// Pipeline chains address resolution, token retrieval, event fetching and
// normalization. Every stage depends on the previous one, so they run in order
// and the first failure ends the run.
type Pipeline struct {
	resolver AddressResolver
	secrets  recycleapp.SecretExtractor
	tokens   recycleapp.TokenProvider
	events   EventFetcher
	language string
	now      func() time.Time
}

type PipelineOption func(*Pipeline)

// WithClock sets the source of "today" used for the date window.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLanguage(lang string) PipelineOption {
	return func(p *Pipeline) {
		if lang != "" {
			p.language = lang
		}
	}
}

func NewPipeline(resolver AddressResolver, secrets recycleapp.SecretExtractor, tokens recycleapp.TokenProvider, events EventFetcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		secrets:  secrets,
		tokens:   tokens,
		events:   events,
		language: recycleapp.DefaultLanguage,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schedule runs the pipeline for addr. No partial schedule is ever returned.
func (p *Pipeline) Schedule(ctx context.Context, addr geo.Address, format audit.Format) (*Schedule, error) {
	logger := log.WithFields(log.Fields{
		"postalcode": addr.PostalCodeString(),
		"format":     format,
	})

	resolved, err := p.resolver.Resolve(ctx, addr, format)
	if err != nil {
		return nil, err
	}

	secret, err := p.secrets.ExtractSecret(ctx)
	if err != nil {
		return nil, err
	}

	token, err := p.tokens.FetchToken(ctx, secret)
	if err != nil {
		return nil, err
	}

	window := recycleapp.WindowFor(p.now())
	raw, err := p.events.Fetch(ctx, resolved, addr, window, token)
	if err != nil {
		return nil, err
	}

	entries, err := recycleapp.Normalize(raw, p.language)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize collection events: %w", err)
	}

	logger.WithFields(log.Fields{
		"municipality": resolved.MunicipalityName,
		"raw":          len(raw),
		"entries":      len(entries),
	}).Info("Schedule retrieved")

	return &Schedule{
		Address:  addr,
		Resolved: resolved,
		Window:   window,
		Entries:  entries,
	}, nil
}
