package browser

import "strings"

// DomainPolicy restricts which hosts the browser may open. A host matches an
// entry when it equals it or is a subdomain of it.
type DomainPolicy struct {
	Allowed []string
	Blocked []string
}

// Check returns "" when jobURL may be opened, otherwise the reason it may not.
func (p DomainPolicy) Check(jobURL string) string {
	host := HostOf(jobURL)
	if host == "" {
		return "job URL has no host"
	}
	for _, d := range p.Blocked {
		if hostMatches(host, d) {
			return "domain " + host + " is blocked by configuration"
		}
	}
	if len(p.Allowed) == 0 {
		return ""
	}
	for _, d := range p.Allowed {
		if hostMatches(host, d) {
			return ""
		}
	}
	return "domain " + host + " is not in the allowed list"
}

func hostMatches(host, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
