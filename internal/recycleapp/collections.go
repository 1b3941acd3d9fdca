package recycleapp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/geo"
	"github.com/klabast/wb-services/recycle-kalender/internal/upstream"
)

const (
	DefaultPageSize = 100

	// EventTypeCollection marks a pickup; other types are informational.
	EventTypeCollection = "collection"

	collectionsService = "recycleapp collections"
)

// RawEvent is an item of the collections API response.
type RawEvent struct {
	Timestamp string   `json:"timestamp"`
	Type      string   `json:"type"`
	Fraction  Fraction `json:"fraction"`
}

// Fraction is a waste category with its localized names.
type Fraction struct {
	Name  map[string]string `json:"name"`
	Color string            `json:"color"`
}

type collectionsResponse struct {
	Items []RawEvent `json:"items"`
}

// CollectionClient fetches the collection events for a resolved address.
// Only one page is requested; the window never spans more than two years.
type CollectionClient struct {
	client   *upstream.Client
	baseURL  string
	consumer string
	pageSize int
}

func NewCollectionClient(client *upstream.Client, baseURL, consumer string, pageSize int) *CollectionClient {
	if consumer == "" {
		consumer = DefaultConsumer
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &CollectionClient{client: client, baseURL: baseURL, consumer: consumer, pageSize: pageSize}
}

// URL builds the collections query, for example
// ?zipcodeId=3000-24062&streetId=https://data.vlaanderen.be/id/straatnaam-5678&houseNumber=1&fromDate=..&untilDate=..&size=100
func (c *CollectionClient) URL(resolved geo.ResolvedAddress, addr geo.Address, window DateWindow) (string, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid collections url: %w", err)
	}
	params := endpoint.Query()
	params.Set("zipcodeId", addr.PostalCodeString()+"-"+resolved.MunicipalityID)
	params.Set("streetId", resolved.Backend+"-"+resolved.StreetID)
	params.Set("houseNumber", addr.HouseNumber)
	params.Set("fromDate", window.FromString())
	params.Set("untilDate", window.UntilString())
	params.Set("size", strconv.Itoa(c.pageSize))
	endpoint.RawQuery = params.Encode()
	return endpoint.String(), nil
}

func (c *CollectionClient) Fetch(ctx context.Context, resolved geo.ResolvedAddress, addr geo.Address, window DateWindow, token string) ([]RawEvent, error) {
	endpoint, err := c.URL(resolved, addr, window)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Accept", upstream.AcceptJSON)
	header.Set("Authorization", token)
	header.Set("x-consumer", c.consumer)

	body, _, err := c.client.Get(ctx, collectionsService, endpoint, header)
	if err != nil {
		return nil, err
	}

	var resp collectionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", collectionsService, err)
	}

	log.WithFields(log.Fields{
		"items": len(resp.Items),
		"from":  window.FromString(),
		"until": window.UntilString(),
	}).Debug("Fetched collection events")
	return resp.Items, nil
}
