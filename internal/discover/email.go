package discover

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)

var placeholderDomains = map[string]bool{
	"example.com":    true,
	"example.org":    true,
	"example.net":    true,
	"domain.com":     true,
	"email.com":      true,
	"yourdomain.com": true,
	"test.com":       true,
	"localhost":      true,
}

var assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

// Usable rejects noreply, placeholder and asset-looking addresses.
func Usable(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	at := strings.LastIndexByte(a, '@')
	if at <= 0 || at == len(a)-1 {
		return false
	}
	local, domain := a[:at], a[at+1:]

	if strings.Contains(local, "noreply") || strings.Contains(local, "no-reply") || strings.Contains(local, "donotreply") {
		return false
	}
	if strings.HasSuffix(domain, "noreply.github.com") || strings.HasSuffix(domain, ".local") {
		return false
	}
	if placeholderDomains[domain] {
		return false
	}
	for _, s := range assetSuffixes {
		if strings.HasSuffix(domain, s) {
			return false
		}
	}
	return true
}

// ExtractEmails returns usable addresses in order of first appearance,
// lowercased and deduplicated.
func ExtractEmails(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range reEmail.FindAllString(text, -1) {
		m = strings.ToLower(strings.TrimRight(m, "."))
		if seen[m] || !Usable(m) {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// htmlToText flattens rendered markdown and keeps mailto: targets, which
// often carry the address behind a friendly link text.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	var b strings.Builder
	doc.Find("a[href^='mailto:']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		b.WriteString(addr)
		b.WriteByte(' ')
	})
	doc.Find("script,style").Remove()
	b.WriteString(doc.Text())
	return b.String()
}
