package recycleapp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/upstream"
)

// ErrExtractionFailed is returned when the secret cannot be recovered from the site.
var ErrExtractionFailed = errors.New("secret extraction failed")

const (
	DefaultSiteURL = "https://recycleapp.be"

	// DefaultScriptPattern finds the main script bundle referenced by the landing page.
	DefaultScriptPattern = `(?:src="| )(/static/js/main\..*?\.chunk\.js)`
	// DefaultSecretPattern finds the secret literal assigned next to the assets path.
	DefaultSecretPattern = `var n="(.*?)",c="/api/v1/assets/"`
)

// SecretExtractor obtains the rotating secret required by the token endpoint.
type SecretExtractor interface {
	ExtractSecret(ctx context.Context) (string, error)
}

// ScriptSecretExtractor scrapes the secret out of the site's main script.
// Upstream may rename the bundle or the variable at any time; a mismatch is
// reported as ErrExtractionFailed, never guessed around.
type ScriptSecretExtractor struct {
	client        *upstream.Client
	siteURL       string
	scriptPattern *regexp.Regexp
	secretPattern *regexp.Regexp
}

type ExtractorOption func(*ScriptSecretExtractor)

func WithScriptPattern(re *regexp.Regexp) ExtractorOption {
	return func(e *ScriptSecretExtractor) {
		if re != nil {
			e.scriptPattern = re
		}
	}
}

func WithSecretPattern(re *regexp.Regexp) ExtractorOption {
	return func(e *ScriptSecretExtractor) {
		if re != nil {
			e.secretPattern = re
		}
	}
}

func NewScriptSecretExtractor(client *upstream.Client, siteURL string, opts ...ExtractorOption) *ScriptSecretExtractor {
	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	e := &ScriptSecretExtractor{
		client:        client,
		siteURL:       siteURL,
		scriptPattern: regexp.MustCompile(DefaultScriptPattern),
		secretPattern: regexp.MustCompile(DefaultSecretPattern),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ScriptSecretExtractor) ExtractSecret(ctx context.Context) (string, error) {
	page, _, err := e.client.Get(ctx, "recycleapp site", e.siteURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: landing page: %v", ErrExtractionFailed, err)
	}

	match := e.scriptPattern.FindSubmatch(page)
	if len(match) < 2 || len(match[1]) == 0 {
		return "", fmt.Errorf("%w: main script not referenced by %s", ErrExtractionFailed, e.siteURL)
	}

	scriptURL, err := resolveReference(e.siteURL, string(match[1]))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	script, _, err := e.client.Get(ctx, "recycleapp script", scriptURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: main script: %v", ErrExtractionFailed, err)
	}

	secret := e.secretPattern.FindSubmatch(script)
	if len(secret) < 2 || len(secret[1]) == 0 {
		return "", fmt.Errorf("%w: secret not found in %s", ErrExtractionFailed, scriptURL)
	}

	log.WithField("script", scriptURL).Debug("Extracted recycleapp secret")
	return string(secret[1]), nil
}

func resolveReference(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid site url: %w", err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid script path %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
