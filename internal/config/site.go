package config

// SiteConfig holds site-specific configuration for a single host.
// This allows customizing crawl behavior per target site.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site.
	// If zero, the global MaxDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// Scope overrides the global link scope for this site
	// ("domain", "subdomain", or "unrestricted").
	Scope string `yaml:"scope,omitempty"`

	// RateLimit overrides the global requests-per-second ceiling.
	// If zero, the global RateLimit is used.
	RateLimit float64 `yaml:"rateLimit,omitempty"`
}

// File represents the structure of the .sitescout configuration file.
type File struct {
	// Sites maps host names to their site-specific configurations.
	// Keys are bare hosts without the scheme (e.g. "example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all
	// sites unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merging the
// site-specific entry over the file's defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if siteConfig.Scope != "" {
			result.Scope = siteConfig.Scope
		}
		if siteConfig.RateLimit != 0 {
			result.RateLimit = siteConfig.RateLimit
		}
		if len(siteConfig.Headers) > 0 {
			// Copy rather than write into the defaults map, which is
			// shared across all sites.
			merged := make(map[string]string, len(result.Headers)+len(siteConfig.Headers))
			for k, v := range result.Headers {
				merged[k] = v
			}
			for k, v := range siteConfig.Headers {
				merged[k] = v
			}
			result.Headers = merged
		}
	}

	return result
}
