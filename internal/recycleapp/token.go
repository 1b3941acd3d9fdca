package recycleapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/klabast/wb-services/recycle-kalender/internal/upstream"
)

// ErrTokenFetchFailed is returned when no access token could be obtained.
var ErrTokenFetchFailed = errors.New("access token fetch failed")

const DefaultConsumer = "recycleapp.be"

// TokenProvider exchanges a secret for a short-lived access token.
type TokenProvider interface {
	FetchToken(ctx context.Context, secret string) (string, error)
}

// TokenClient requests a fresh token on every call; tokens are never cached.
type TokenClient struct {
	client   *upstream.Client
	tokenURL string
	consumer string
}

func NewTokenClient(client *upstream.Client, tokenURL, consumer string) *TokenClient {
	if consumer == "" {
		consumer = DefaultConsumer
	}
	return &TokenClient{client: client, tokenURL: tokenURL, consumer: consumer}
}

func (t *TokenClient) FetchToken(ctx context.Context, secret string) (string, error) {
	header := http.Header{}
	header.Set("Accept", upstream.AcceptJSON)
	header.Set("x-consumer", t.consumer)
	header.Set("x-secret", secret)

	body, _, err := t.client.Get(ctx, "recycleapp token", t.tokenURL, header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenFetchFailed, err)
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrTokenFetchFailed, err)
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return "", fmt.Errorf("%w: response has no accessToken", ErrTokenFetchFailed)
	}
	return resp.AccessToken, nil
}
