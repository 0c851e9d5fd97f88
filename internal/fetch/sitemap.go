package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// sitemapURLSet mirrors the sitemaps.org 0.9 <urlset> document.
type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapIndex mirrors the sitemaps.org 0.9 <sitemapindex> document.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// FetchSitemap retrieves a sitemap and returns the page URLs listed in
// it. A <sitemapindex> is followed one level deep; nested indexes are
// not descended into.
func FetchSitemap(ctx context.Context, client *http.Client, sitemapURL string) ([]string, error) {
	body, err := get(ctx, client, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}

	urls, children, err := parseSitemap(body)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}

	for _, child := range children {
		childBody, err := get(ctx, client, child)
		if err != nil {
			return nil, fmt.Errorf("fetch child sitemap %s: %w", child, err)
		}
		childURLs, _, err := parseSitemap(childBody)
		if err != nil {
			return nil, fmt.Errorf("parse child sitemap %s: %w", child, err)
		}
		urls = append(urls, childURLs...)
	}

	return urls, nil
}

// parseSitemap decodes either sitemap document shape and returns page
// URLs and, for an index, the child sitemap URLs.
func parseSitemap(data []byte) (urls []string, children []string, err error) {
	var set sitemapURLSet
	if err := xml.Unmarshal(data, &set); err == nil && len(set.URLs) > 0 {
		for _, u := range set.URLs {
			if normalized := normalizeURL(u.Loc); normalized != "" {
				urls = append(urls, normalized)
			}
		}
		return urls, nil, nil
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(data, &idx); err == nil && len(idx.Sitemaps) > 0 {
		for _, sm := range idx.Sitemaps {
			if normalized := normalizeURL(sm.Loc); normalized != "" {
				children = append(children, normalized)
			}
		}
		return nil, children, nil
	}

	return nil, nil, fmt.Errorf("document contains no <url> or <sitemap> entries")
}

// normalizeURL trims whitespace and drops fragments. Anything that does
// not parse as an absolute http(s) URL is discarded.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
