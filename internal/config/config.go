package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/viper"

	"github.com/couchcryptid/modvolc-etl/internal/domain"
)

// DateLayout is the ISO date format accepted for START_DATE and END_DATE.
const DateLayout = "2006-01-02"

// Keys used in viper. Environment variables are the upper-case form.
const (
	KeySiteName        = "site_name"
	KeySiteLat         = "site_lat"
	KeySiteLon         = "site_lon"
	KeySiteRadiusKm    = "site_radius_km"
	KeyStartDate       = "start_date"
	KeyEndDate         = "end_date"
	KeyOutputRoot      = "output_root"
	KeyGapPolicy       = "gap_policy"
	KeyMarkerPolicy    = "marker_policy"
	KeyMarkerHighlight = "marker_highlight"
	KeyMapCluster      = "map_cluster"
	KeyModvolcBaseURL  = "modvolc_base_url"
	KeyModvolcTimeout  = "modvolc_timeout"
	KeyModvolcRetries  = "modvolc_retries"
	KeyQueryPadDeg     = "query_pad_deg"
	KeyFetchCacheTTL   = "fetch_cache_ttl"
	KeyMapboxToken     = "mapbox_token"
	KeyMapboxEnabled   = "mapbox_enabled"
	KeyMapboxTimeout   = "mapbox_timeout"
	KeyKafkaBrokers    = "kafka_brokers"
	KeyKafkaTopic      = "kafka_topic"
	KeyHTTPAddr        = "http_addr"
	KeyRefreshSchedule = "refresh_schedule"
	KeyMetricsTextfile = "metrics_textfile"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
)

// DefaultModvolcURL is the MODVOLC alerts CGI endpoint.
const DefaultModvolcURL = "http://modis.higp.hawaii.edu/cgi-bin/mergeimage"

// Config holds the settings for one site report, populated from viper.
type Config struct {
	Site  domain.Site
	Start time.Time
	End   time.Time
	// RollingEnd is set when END_DATE was not given; scheduled runs then
	// move the end of the window to the current day.
	RollingEnd bool

	OutputRoot      string
	GapPolicy       domain.GapPolicy
	MarkerPolicy    domain.MarkerPolicy
	MarkerHighlight int
	MapCluster      bool

	ModvolcBaseURL string
	ModvolcTimeout time.Duration
	ModvolcRetries int
	QueryPad       float64
	FetchCacheTTL  time.Duration

	// Mapbox geocoding configuration.
	MapboxToken   string
	MapboxEnabled bool
	MapboxTimeout time.Duration

	// Kafka publishing is enabled when KafkaBrokers is non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	RefreshSchedule string
	MetricsTextfile string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// SetDefaults registers default values and binds the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySiteRadiusKm, 1.0)
	v.SetDefault(KeyOutputRoot, ".")
	v.SetDefault(KeyGapPolicy, string(domain.GapContinuous))
	v.SetDefault(KeyMarkerPolicy, string(domain.MarkerFirstN))
	v.SetDefault(KeyMarkerHighlight, domain.DefaultHighlightCount)
	v.SetDefault(KeyMapCluster, false)
	v.SetDefault(KeyModvolcBaseURL, DefaultModvolcURL)
	v.SetDefault(KeyModvolcTimeout, "60s")
	v.SetDefault(KeyModvolcRetries, 2)
	v.SetDefault(KeyQueryPadDeg, domain.DefaultQueryPad)
	v.SetDefault(KeyFetchCacheTTL, "30m")
	v.SetDefault(KeyMapboxTimeout, "5s")
	v.SetDefault(KeyKafkaTopic, "modvolc-anomalies")
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v, applying defaults where unset.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	modvolcTimeout, err := positiveDuration(v, KeyModvolcTimeout)
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := positiveDuration(v, KeyMapboxTimeout)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := time.ParseDuration(v.GetString(KeyFetchCacheTTL))
	if err != nil || cacheTTL < 0 {
		return nil, errors.New("invalid FETCH_CACHE_TTL")
	}

	start, err := parseDate(v, KeyStartDate, time.Time{})
	if err != nil {
		return nil, err
	}
	end, err := parseDate(v, KeyEndDate, domain.Today())
	if err != nil {
		return nil, err
	}

	gap, err := domain.ParseGapPolicy(v.GetString(KeyGapPolicy))
	if err != nil {
		return nil, fmt.Errorf("invalid GAP_POLICY: %w", err)
	}
	marker, err := domain.ParseMarkerPolicy(v.GetString(KeyMarkerPolicy))
	if err != nil {
		return nil, fmt.Errorf("invalid MARKER_POLICY: %w", err)
	}

	mapboxToken := v.GetString(KeyMapboxToken)
	mapboxEnabled := mapboxToken != ""
	if v.IsSet(KeyMapboxEnabled) {
		mapboxEnabled = v.GetBool(KeyMapboxEnabled)
	}

	cfg := &Config{
		Site: domain.Site{
			Name:     strings.TrimSpace(v.GetString(KeySiteName)),
			Lat:      v.GetFloat64(KeySiteLat),
			Lon:      v.GetFloat64(KeySiteLon),
			RadiusKm: v.GetFloat64(KeySiteRadiusKm),
		},
		Start:      start,
		End:        end,
		RollingEnd: strings.TrimSpace(v.GetString(KeyEndDate)) == "",

		OutputRoot:      v.GetString(KeyOutputRoot),
		GapPolicy:       gap,
		MarkerPolicy:    marker,
		MarkerHighlight: v.GetInt(KeyMarkerHighlight),
		MapCluster:      v.GetBool(KeyMapCluster),

		ModvolcBaseURL: v.GetString(KeyModvolcBaseURL),
		ModvolcTimeout: modvolcTimeout,
		ModvolcRetries: v.GetInt(KeyModvolcRetries),
		QueryPad:       v.GetFloat64(KeyQueryPadDeg),
		FetchCacheTTL:  cacheTTL,

		MapboxToken:   mapboxToken,
		MapboxEnabled: mapboxEnabled,
		MapboxTimeout: mapboxTimeout,

		KafkaBrokers: sharedcfg.ParseBrokers(v.GetString(KeyKafkaBrokers)),
		KafkaTopic:   v.GetString(KeyKafkaTopic),

		HTTPAddr:        v.GetString(KeyHTTPAddr),
		RefreshSchedule: strings.TrimSpace(v.GetString(KeyRefreshSchedule)),
		MetricsTextfile: v.GetString(KeyMetricsTextfile),

		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Site.Name == "" {
		return errors.New("SITE_NAME is required")
	}
	if c.Site.Lat < -90 || c.Site.Lat > 90 {
		return fmt.Errorf("invalid SITE_LAT %v: must be within [-90, 90]", c.Site.Lat)
	}
	if c.Site.Lon < -180 || c.Site.Lon > 180 {
		return fmt.Errorf("invalid SITE_LON %v: must be within [-180, 180]", c.Site.Lon)
	}
	if c.Site.RadiusKm < 0 {
		return fmt.Errorf("invalid SITE_RADIUS_KM %v: must not be negative", c.Site.RadiusKm)
	}
	if c.Start.IsZero() {
		return errors.New("START_DATE is required")
	}
	if c.Start.After(c.End) {
		return fmt.Errorf("START_DATE %s is after END_DATE %s",
			c.Start.Format(DateLayout), c.End.Format(DateLayout))
	}
	if c.MarkerHighlight < 0 {
		return errors.New("invalid MARKER_HIGHLIGHT: must not be negative")
	}
	if c.ModvolcRetries < 0 {
		return errors.New("invalid MODVOLC_RETRIES: must not be negative")
	}
	if c.QueryPad < 0 {
		return errors.New("invalid QUERY_PAD_DEG: must not be negative")
	}
	if c.ModvolcBaseURL == "" {
		return errors.New("MODVOLC_BASE_URL is required")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if !c.Site.HasCoords() && !c.MapboxEnabled {
		return errors.New("SITE_LAT and SITE_LON are required unless MAPBOX_TOKEN is set")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// PublishEnabled reports whether filtered records go to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", strings.ToUpper(key))
	}
	return d, nil
}

func parseDate(v *viper.Viper, key string, fallback time.Time) (time.Time, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", strings.ToUpper(key), s)
	}
	return t, nil
}
