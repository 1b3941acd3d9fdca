package app

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
	"github.com/klabast/wb-services/recycle-kalender/internal/geo"
)

// IsTruthy reports whether a flag value enables a feature ("true" or "1")
func IsTruthy(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1"
}

// DetectFormat tells how the request was made, for the audit log
func DetectFormat(q ScheduleQuery) audit.Format {
	switch {
	case q.GetPickups != "":
		return audit.FormatWeb
	case q.Format != "":
		switch audit.Format(q.Format) {
		case audit.FormatICS, audit.FormatCSV, audit.FormatJSON:
			return audit.Format(q.Format)
		}
	}
	return audit.FormatUndefined
}

// HasScheduleRequest reports whether q asks for a schedule rather than the empty form
func HasScheduleRequest(q ScheduleQuery) bool {
	if q.GetPickups != "" || q.Format != "" {
		return true
	}
	return q.PostalCode != "" && q.StreetName != "" && q.HouseNumber != ""
}

// feedURL returns the subscription URL for the address in q
func feedURL(c *gin.Context, q ScheduleQuery, notifications bool) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	params := url.Values{}
	params.Set("postalcode", q.PostalCode)
	params.Set("streetname", q.StreetName)
	params.Set("housenumber", q.HouseNumber)
	params.Set("format", string(audit.FormatICS))
	if notifications {
		params.Set("notifications", "true")
	}

	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: "/", RawQuery: params.Encode()}
	return u.String()
}

// feedFilename builds a download file name without extension
func feedFilename(addr geo.Address) string {
	return "ophaalkalender_" + addr.PostalCodeString() + "_" + slug(addr.StreetName) + "_" + slug(addr.HouseNumber)
}

func slug(s string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, s))
}
