// Package geo resolves the country a request originates from. Lookups are
// best effort: failures degrade to "Unknown" and never reach the caller.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kyc-flow/kyc_flow/internal/identity"
	"github.com/kyc-flow/kyc_flow/internal/logging"
)

const (
	Unknown     = "Unknown"
	cachePrefix = "geo:v1:"

	SourceLocal   = "local"
	SourceCache   = "cache"
	SourcePrimary = "primary"
	SourceBackup  = "backup"
	SourceNone    = "none"
)

// Result is the outcome of a lookup.
type Result struct {
	IP          string `json:"ip"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Source      string `json:"source"`
}

// Options configures a Locator.
type Options struct {
	PrimaryURL       string
	BackupURL        string
	Timeout          time.Duration
	LocalCountry     string
	LocalCountryCode string
	CacheTTL         time.Duration
}

// Locator looks countries up through an ip-api.com compatible primary and an
// ipapi.co compatible backup, caching answers in Redis.
type Locator struct {
	opts   Options
	cache  redis.Cmdable
	logger *slog.Logger
}

// NewLocator builds a Locator. cache may be nil.
func NewLocator(opts Options, cache redis.Cmdable, logger *slog.Logger) *Locator {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.LocalCountry == "" {
		opts.LocalCountry = "India"
		opts.LocalCountryCode = "IN"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Locator{opts: opts, cache: cache, logger: logger}
}

// Locate implements identity.Geolocator.
func (l *Locator) Locate(c *fiber.Ctx) identity.Location {
	ip := ClientIP(c)
	res := l.Lookup(c.UserContext(), ip)
	return identity.Location{Country: res.Country, IPAddress: ip}
}

// Lookup resolves ip to a country. It never fails.
func (l *Locator) Lookup(ctx context.Context, ip string) Result {
	if IsLocal(ip) {
		return Result{IP: ip, Country: l.opts.LocalCountry, CountryCode: l.opts.LocalCountryCode, Source: SourceLocal}
	}
	if res, ok := l.cached(ctx, ip); ok {
		return res
	}

	res, err := l.primary(ip)
	if err != nil {
		l.logger.Debug("primary geolocation failed", "ip", ip, "error", err)
		res, err = l.backup(ip)
	}
	if err != nil {
		l.logger.Warn("geolocation unavailable", "ip", ip, "error", err)
		return Result{IP: ip, Country: Unknown, CountryCode: Unknown, Source: SourceNone}
	}
	l.store(ctx, res)
	return res
}

type primaryResponse struct {
	Status      string `json:"status"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

func (l *Locator) primary(ip string) (Result, error) {
	if l.opts.PrimaryURL == "" {
		return Result{}, errors.New("primary geolocation disabled")
	}
	endpoint := strings.TrimRight(l.opts.PrimaryURL, "/") + "/" + url.PathEscape(ip) + "?fields=status,country,countryCode"
	var body primaryResponse
	if err := l.getJSON(endpoint, &body); err != nil {
		return Result{}, err
	}
	if body.Status != "success" || body.Country == "" {
		return Result{}, fmt.Errorf("primary geolocation status %q", body.Status)
	}
	return Result{IP: ip, Country: body.Country, CountryCode: orUnknown(body.CountryCode), Source: SourcePrimary}, nil
}

type backupResponse struct {
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
}

func (l *Locator) backup(ip string) (Result, error) {
	if l.opts.BackupURL == "" {
		return Result{}, errors.New("backup geolocation disabled")
	}
	endpoint := strings.TrimRight(l.opts.BackupURL, "/") + "/" + url.PathEscape(ip) + "/json/"
	var body backupResponse
	if err := l.getJSON(endpoint, &body); err != nil {
		return Result{}, err
	}
	if body.CountryName == "" {
		return Result{}, errors.New("backup geolocation returned no country")
	}
	return Result{IP: ip, Country: body.CountryName, CountryCode: orUnknown(body.CountryCode), Source: SourceBackup}, nil
}

func (l *Locator) getJSON(endpoint string, out any) error {
	agent := fiber.Get(endpoint).Timeout(l.opts.Timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	code, _, errs := agent.Struct(out)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code != fiber.StatusOK {
		return fmt.Errorf("unexpected status %d", code)
	}
	return nil
}

func (l *Locator) cached(ctx context.Context, ip string) (Result, bool) {
	if l.cache == nil {
		return Result{}, false
	}
	raw, err := l.cache.Get(ctx, cachePrefix+ip).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			l.logger.Warn("geolocation cache read failed", "error", err)
		}
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, false
	}
	res.Source = SourceCache
	return res, true
}

func (l *Locator) store(ctx context.Context, res Result) {
	if l.cache == nil || l.opts.CacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := l.cache.Set(ctx, cachePrefix+res.IP, payload, l.opts.CacheTTL).Err(); err != nil {
		l.logger.Warn("geolocation cache write failed", "error", err)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
