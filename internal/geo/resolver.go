package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
	"github.com/klabast/wb-services/recycle-kalender/internal/upstream"
)

const adresMatchService = "adresmatch"

// AddressWarning is a soft failure reported by the address-match API. Its
// message is shown to the user verbatim.
type AddressWarning struct {
	Code    string
	Message string
}

func (w *AddressWarning) Error() string {
	return w.Message
}

type adresMatchResponse struct {
	AdresMatches []struct {
		Gemeente struct {
			ObjectID     string `json:"objectId"`
			Gemeentenaam struct {
				GeografischeNaam struct {
					Spelling string `json:"spelling"`
				} `json:"geografischeNaam"`
			} `json:"gemeentenaam"`
		} `json:"gemeente"`
		Straatnaam struct {
			ObjectID string `json:"objectId"`
		} `json:"straatnaam"`
	} `json:"adresMatches"`
	Warnings []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"warnings"`
}

// Resolver looks up registry identifiers for an address and audits every attempt.
type Resolver struct {
	client *upstream.Client
	apiURL string
	apiKey string
	routes RouteTable
	sink   audit.Sink
	now    func() time.Time
}

func NewResolver(client *upstream.Client, apiURL, apiKey string, routes RouteTable, sink audit.Sink) *Resolver {
	return &Resolver{
		client: client,
		apiURL: apiURL,
		apiKey: apiKey,
		routes: routes,
		sink:   sink,
		now:    time.Now,
	}
}

// Resolve returns the identifiers for addr. The outcome is written to the
// audit sink first; if that write fails, *audit.Error is returned instead.
func (r *Resolver) Resolve(ctx context.Context, addr Address, format audit.Format) (ResolvedAddress, error) {
	resolved, status, err := r.lookup(ctx, addr)

	rec := audit.Record{
		Created:     r.now(),
		PostalCode:  addr.PostalCode,
		StreetName:  addr.StreetName,
		HouseNumber: addr.HouseNumber,
		HTTPStatus:  statusText(status),
		Warning:     audit.NoWarnings,
		Format:      format,
	}
	if err != nil {
		rec.Warning = warningText(err)
	}

	if auditErr := r.sink.Record(ctx, rec); auditErr != nil {
		log.WithError(auditErr).WithField("resolveError", err).Error("Failed to record address resolution")
		return ResolvedAddress{}, &audit.Error{Err: auditErr}
	}
	if err != nil {
		return ResolvedAddress{}, err
	}
	return resolved, nil
}

func (r *Resolver) lookup(ctx context.Context, addr Address) (ResolvedAddress, int, error) {
	route, err := r.routes.Route(addr.PostalCode)
	if err != nil {
		return ResolvedAddress{}, 0, err
	}

	endpoint, err := url.Parse(strings.TrimRight(r.apiURL, "/") + "/adresmatch")
	if err != nil {
		return ResolvedAddress{}, 0, fmt.Errorf("invalid address-match url: %w", err)
	}
	params := url.Values{}
	params.Set("postcode", addr.PostalCodeString())
	params.Set("straatnaam", addr.StreetName)
	endpoint.RawQuery = params.Encode()

	header := http.Header{}
	header.Set("Accept", upstream.AcceptJSON)
	header.Set("x-api-key", r.apiKey)

	body, status, err := r.client.Get(ctx, adresMatchService, endpoint.String(), header)
	if err != nil {
		return ResolvedAddress{}, status, err
	}

	var resp adresMatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ResolvedAddress{}, status, fmt.Errorf("%s: failed to decode response: %w", adresMatchService, err)
	}

	if len(resp.Warnings) > 0 {
		return ResolvedAddress{}, status, &AddressWarning{
			Code:    resp.Warnings[0].Code,
			Message: resp.Warnings[0].Message,
		}
	}
	if len(resp.AdresMatches) == 0 {
		return ResolvedAddress{}, status, &AddressWarning{Message: "No matching street was found for this postal code."}
	}

	match := resp.AdresMatches[0]
	resolved := ResolvedAddress{
		MunicipalityID:   match.Gemeente.ObjectID,
		StreetID:         match.Straatnaam.ObjectID,
		MunicipalityName: match.Gemeente.Gemeentenaam.GeografischeNaam.Spelling,
		Backend:          route.Backend,
	}
	log.WithFields(log.Fields{
		"postalcode":   addr.PostalCodeString(),
		"municipality": resolved.MunicipalityName,
		"backend":      resolved.Backend,
	}).Debug("Address resolved")
	return resolved, status, nil
}

func statusText(status int) string {
	if status == 0 {
		return ""
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

func warningText(err error) string {
	var warning *AddressWarning
	var httpErr *upstream.HTTPError
	switch {
	case errors.As(err, &warning):
		return warning.Message
	case errors.As(err, &httpErr):
		return httpErr.Message()
	default:
		return err.Error()
	}
}
