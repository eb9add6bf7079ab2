package services

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CodeFormerCodeFormer/shorty/internal/config"
	"github.com/CodeFormerCodeFormer/shorty/pkg/logger"
)

var geoClient = &http.Client{Timeout: 3 * time.Second}

// ResolveCountry looks up the ISO 3166-1 alpha-2 country code for an IP via
// ipapi.co. Best effort only: any failure returns nil and the redirect
// proceeds with an unknown country.
func ResolveCountry(ip string) *string {
	if ip == "" {
		return nil
	}

	url := fmt.Sprintf("%s/%s/country/", config.AppConfig.GeoAPIURL, ip)
	resp, err := geoClient.Get(url)
	if err != nil {
		logger.Debug().Err(err).Str("ip", ip).Msg("Geo lookup failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}

	// The /country/ endpoint answers with the bare code, e.g. "BR".
	// Reserved/private IPs come back as "Undefined".
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16))
	if err != nil {
		return nil
	}

	country := strings.ToUpper(strings.TrimSpace(string(body)))
	if len(country) != 2 {
		return nil
	}

	return &country
}
