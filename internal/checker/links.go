package checker

import (
	"bytes"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks returns the in-scope anchor targets of body in document
// order, resolved against page and normalized. Scope is decided against
// origin: a link must share its network location.
func ExtractLinks(origin, page *url.URL, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := page.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if !SameNetloc(origin, u) {
			return
		}
		link := Normalize(u)
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

// Normalize drops the fragment and any trailing slash of the path so that
// equivalent links compare equal. The query is kept as is.
func Normalize(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.Host = strings.ToLower(c.Host)
	c.Path = strings.TrimRight(c.Path, "/")
	c.RawPath = strings.TrimRight(c.RawPath, "/")
	return c.String()
}

// SameNetloc reports whether a and b share host and port, regardless of
// scheme. A leading "www." is not significant.
func SameNetloc(a, b *url.URL) bool {
	return netloc(a) == netloc(b)
}

func netloc(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" {
		return net.JoinHostPort(host, port)
	}
	return host
}

// sameHost is the stricter comparison deciding whether a link is fetched
// without a politeness pause.
func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
