package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/teslashibe/go-glance/internal/httpc"
)

// DefaultNominatimURL is the public Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Place is a reverse-geocoded address. Any field may be empty.
type Place struct {
	Street           string
	City             string
	District         string
	State            string
	Country          string
	FormattedAddress string
}

// Empty reports whether nothing was resolved.
func (p Place) Empty() bool {
	return p == Place{}
}

// Label returns the most specific short name for the place, preferring the city.
func (p Place) Label() string {
	switch {
	case p.City != "" && p.Country != "":
		return p.City + ", " + p.Country
	case p.City != "":
		return p.City
	case p.District != "":
		return p.District
	default:
		return p.Country
	}
}

// Nominatim reverse-geocodes with the OpenStreetMap Nominatim API.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatim creates a client. An empty baseURL uses the public instance.
func NewNominatim(baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = "go-glance/1.0"
	}
	return &Nominatim{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpc.Client,
	}
}

// WithHTTPClient replaces the HTTP client.
func (n *Nominatim) WithHTTPClient(c *http.Client) *Nominatim {
	n.httpClient = c
	return n
}

type nominatimResponse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// Reverse looks up the place at lat/lon.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Place{}, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocode: status %d: %s", resp.StatusCode, httpc.ReadBody(resp, 512))
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Place{}, fmt.Errorf("geocode: decode: %w", err)
	}
	if body.Error != "" {
		return Place{}, fmt.Errorf("geocode: %s", body.Error)
	}

	a := body.Address
	return Place{
		Street:           first(a, "road", "pedestrian", "footway"),
		City:             first(a, "city", "town", "village", "municipality"),
		District:         first(a, "suburb", "neighbourhood", "city_district", "quarter"),
		State:            first(a, "state", "region"),
		Country:          a["country"],
		FormattedAddress: body.DisplayName,
	}, nil
}

func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

var _ Geocoder = (*Nominatim)(nil)
