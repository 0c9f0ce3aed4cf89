// Package config holds the Configuration Registry: a process-wide, read-only
// catalog of per-resort scraping contracts, loaded once at process start.
package config

// Strategy identifies which Scraper implementation a MountainConfig uses.
type Strategy string

const (
	StrategyStaticHTML Strategy = "static_html"
	StrategyJSONAPI     Strategy = "json_api"
	StrategyHeadless    Strategy = "headless_browser"
)

// SelectorSet maps semantic fields to CSS selectors, used by both the
// static-HTML and headless-browser strategies (spec §3.1).
type SelectorSet struct {
	LiftsOpen   string `json:"lifts_open,omitempty"`
	RunsOpen    string `json:"runs_open,omitempty"`
	PercentOpen string `json:"percent_open,omitempty"`
	AcresOpen   string `json:"acres_open,omitempty"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Empty reports whether no selector was configured at all.
func (s SelectorSet) Empty() bool {
	return s.LiftsOpen == "" && s.RunsOpen == "" && s.PercentOpen == "" &&
		s.AcresOpen == "" && s.Status == "" && s.Message == ""
}

// JSONTransform maps a JSON-API provider payload's dotted paths to the same
// semantic fields. The value at IsOpenPath drives the boolean per spec §4.4:
// a JSON boolean is used as-is, a string goes through the same open/closed
// text rule as the static-HTML status selector, an absent path or null is
// false, and any other value is true unless it prints as "0".
type JSONTransform struct {
	LiftsOpenPath  string `json:"lifts_open_path,omitempty"`
	LiftsTotalPath string `json:"lifts_total_path,omitempty"`
	RunsOpenPath   string `json:"runs_open_path,omitempty"`
	RunsTotalPath  string `json:"runs_total_path,omitempty"`
	IsOpenPath     string `json:"is_open_path,omitempty"`
	MessagePath    string `json:"message_path,omitempty"`
}

// JSONAPIParams describes a JSON-API strategy's endpoint and transform.
type JSONAPIParams struct {
	Endpoint  string            `json:"endpoint"`
	Method    string            `json:"method,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Transform JSONTransform     `json:"transform"`
}

// HeadlessWait is the post-navigation wait policy for the headless strategy.
type HeadlessWait struct {
	NetworkIdle bool `json:"network_idle"`
	GraceMS     int  `json:"grace_ms,omitempty"`
}

// Elevation carries the reference altitudes the Aggregator needs for its
// lapse-rate temperature and rain-risk calculations (spec §4.8 bullet 3).
type Elevation struct {
	BaseFeet      int `json:"base_feet,omitempty"`
	SummitFeet    int `json:"summit_feet,omitempty"`
	ReferenceFeet int `json:"reference_feet,omitempty"`
}

// Coordinates locates a resort for the external weather adapters (spec
// §4.8 bullet 2: NOAA/SNOTEL/forecast lookups keyed by lat/lon).
type Coordinates struct {
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// MountainConfig is one resort's immutable scraping contract (spec §3.1).
type MountainConfig struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name"`
	CanonicalURL string        `json:"canonical_url"`
	DataURL      string        `json:"data_url,omitempty"`
	Strategy     Strategy      `json:"strategy"`
	Enabled      bool          `json:"enabled"`
	Batch        int           `json:"batch,omitempty"`
	Selectors    SelectorSet   `json:"selectors,omitempty"`
	JSONAPI      JSONAPIParams `json:"json_api,omitempty"`
	WaitPolicy   HeadlessWait  `json:"wait_policy,omitempty"`
	Elevation    Elevation     `json:"elevation,omitempty"`
	Coordinates  Coordinates   `json:"coordinates,omitempty"`
}

// EffectiveDataURL returns DataURL, falling back to CanonicalURL (spec §3.1:
// "data_url (defaults to canonical)").
func (c MountainConfig) EffectiveDataURL() string {
	if c.DataURL != "" {
		return c.DataURL
	}
	return c.CanonicalURL
}
