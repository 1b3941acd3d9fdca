package geo

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnsupportedRegion is returned for postal codes outside every configured route.
var ErrUnsupportedRegion = errors.New("postal code is not in a supported region")

const (
	MinPostalCode = 0
	MaxPostalCode = 9999

	// DefaultRoutes maps the Belgian postal-code ranges to the street-name
	// registry each region publishes its identifiers under.
	DefaultRoutes = "1000-1999=BE.BRUSSELS.BRIC.ADM.STR," +
		"2000-3999=https://data.vlaanderen.be/id/straatnaam," +
		"4000-7999=geodata.wallonie.be/id/streetname," +
		"8000-9999=https://data.vlaanderen.be/id/straatnaam"
)

// BackendRoute pairs an inclusive postal-code interval with a backend identifier.
type BackendRoute struct {
	Low     int
	High    int
	Backend string
}

func (r BackendRoute) Contains(postalCode int) bool {
	return postalCode >= r.Low && postalCode <= r.High
}

func (r BackendRoute) String() string {
	return fmt.Sprintf("%04d-%04d=%s", r.Low, r.High, r.Backend)
}

// RouteTable is an ordered, disjoint list of routes. It is never modified
// after it has been loaded.
type RouteTable struct {
	routes []BackendRoute
}

// NewRouteTable sorts and validates routes.
func NewRouteTable(routes []BackendRoute) (RouteTable, error) {
	sorted := make([]BackendRoute, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Low < sorted[j].Low
	})
	t := RouteTable{routes: sorted}
	if err := t.Validate(); err != nil {
		return RouteTable{}, err
	}
	return t, nil
}

// ParseRoutes reads the `low-high=backend,...` notation used in configuration.
func ParseRoutes(s string) (RouteTable, error) {
	var routes []BackendRoute
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		interval, backend, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(backend) == "" {
			return RouteTable{}, fmt.Errorf("route %q: expected low-high=backend", part)
		}
		lowStr, highStr, ok := strings.Cut(interval, "-")
		if !ok {
			return RouteTable{}, fmt.Errorf("route %q: expected low-high interval", part)
		}
		low, err := strconv.Atoi(strings.TrimSpace(lowStr))
		if err != nil {
			return RouteTable{}, fmt.Errorf("route %q: invalid lower bound: %w", part, err)
		}
		high, err := strconv.Atoi(strings.TrimSpace(highStr))
		if err != nil {
			return RouteTable{}, fmt.Errorf("route %q: invalid upper bound: %w", part, err)
		}
		routes = append(routes, BackendRoute{Low: low, High: high, Backend: strings.TrimSpace(backend)})
	}
	if len(routes) == 0 {
		return RouteTable{}, errors.New("no postal code routes configured")
	}
	return NewRouteTable(routes)
}

// UnmarshalText lets the table be read directly from an environment variable.
func (t *RouteTable) UnmarshalText(text []byte) error {
	parsed, err := ParseRoutes(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Validate checks bounds and that no two intervals overlap. Routes must be sorted.
func (t RouteTable) Validate() error {
	for i, r := range t.routes {
		if r.Low < MinPostalCode || r.High > MaxPostalCode {
			return fmt.Errorf("route %s: bounds outside %04d-%04d", r, MinPostalCode, MaxPostalCode)
		}
		if r.Low > r.High {
			return fmt.Errorf("route %s: lower bound exceeds upper bound", r)
		}
		if i > 0 && r.Low <= t.routes[i-1].High {
			return fmt.Errorf("route %s overlaps %s", r, t.routes[i-1])
		}
	}
	return nil
}

// Route returns the route whose interval contains postalCode.
func (t RouteTable) Route(postalCode int) (BackendRoute, error) {
	for _, r := range t.routes {
		if r.Contains(postalCode) {
			return r, nil
		}
	}
	return BackendRoute{}, fmt.Errorf("%w: %04d", ErrUnsupportedRegion, postalCode)
}

// Routes returns a copy of the configured routes in ascending order.
func (t RouteTable) Routes() []BackendRoute {
	out := make([]BackendRoute, len(t.routes))
	copy(out, t.routes)
	return out
}

func (t RouteTable) String() string {
	parts := make([]string, len(t.routes))
	for i, r := range t.routes {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
