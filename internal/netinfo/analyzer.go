// Package netinfo collects information about internet domains: DNS records,
// subdomains from certificate transparency logs and the HTTP page title.
package netinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pix-erase/internal/converter"
	"github.com/aliskhannn/pix-erase/internal/model"
)

// ErrInvalidDomain is returned for names that cannot be a domain.
var ErrInvalidDomain = errors.New("invalid domain name")

var domainPattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// ValidateDomain checks the syntax of a domain name.
func ValidateDomain(name string) error {
	if !domainPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}
	return nil
}

// Analyzer fans out DNS resolution, certificate-transparency subdomain
// discovery and HTTP title fetching, all bounded by the caller's context.
// Stateless and safe for concurrent use.
type Analyzer struct {
	resolver *net.Resolver
	client   *http.Client
	ctURL    string
}

// NewAnalyzer creates an Analyzer. ctURL is the certificate transparency
// search endpoint (crt.sh compatible); empty disables subdomain discovery.
func NewAnalyzer(ctURL string, httpTimeout time.Duration) *Analyzer {
	return &Analyzer{
		resolver: net.DefaultResolver,
		client:   &http.Client{Timeout: httpTimeout},
		ctURL:    ctURL,
	}
}

// Analyze collects the three report parts concurrently. DNS failure for the
// apex is transient (the domain may exist with flaky resolvers); the title
// and subdomain lookups are best-effort and produce empty sections.
func (a *Analyzer) Analyze(ctx context.Context, domain string) (model.DomainReport, error) {
	if err := ValidateDomain(domain); err != nil {
		return model.DomainReport{}, fmt.Errorf("%w: %v", converter.ErrBadInput, err)
	}

	var (
		wg      sync.WaitGroup
		records model.DNSRecords
		subs    []string
		title   string
		dnsErr  error
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		records, dnsErr = a.resolveRecords(ctx, domain)
	}()

	go func() {
		defer wg.Done()
		var err error
		if subs, err = a.fetchSubdomains(ctx, domain); err != nil {
			zlog.Logger.Warn().Err(err).Str("domain", domain).Msg("subdomain discovery failed")
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		if title, err = a.fetchTitle(ctx, domain); err != nil {
			zlog.Logger.Warn().Err(err).Str("domain", domain).Msg("title fetch failed")
		}
	}()

	wg.Wait()

	if dnsErr != nil {
		return model.DomainReport{}, fmt.Errorf("%w: resolve %s: %v", converter.ErrUnavailable, domain, dnsErr)
	}

	return model.DomainReport{
		Domain:     domain,
		Records:    records,
		Subdomains: subs,
		Title:      title,
		AnalyzedAt: time.Now().UTC(),
	}, nil
}

func (a *Analyzer) resolveRecords(ctx context.Context, domain string) (model.DNSRecords, error) {
	var records model.DNSRecords

	addrs, err := a.resolver.LookupIPAddr(ctx, domain)
	if err != nil {
		return records, err
	}
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			records.A = append(records.A, v4.String())
		} else {
			records.AAAA = append(records.AAAA, addr.IP.String())
		}
	}

	// The remaining record types are optional; absence is not an error.
	if mxs, err := a.resolver.LookupMX(ctx, domain); err == nil {
		for _, mx := range mxs {
			records.MX = append(records.MX, mx.Host)
		}
	}
	if nss, err := a.resolver.LookupNS(ctx, domain); err == nil {
		for _, ns := range nss {
			records.NS = append(records.NS, ns.Host)
		}
	}
	if txts, err := a.resolver.LookupTXT(ctx, domain); err == nil {
		records.TXT = txts
	}
	if cname, err := a.resolver.LookupCNAME(ctx, domain); err == nil && strings.TrimSuffix(cname, ".") != domain {
		records.CNAME = cname
	}

	return records, nil
}

// fetchSubdomains queries the certificate transparency log search endpoint
// and de-duplicates the names found in issued certificates.
func (a *Analyzer) fetchSubdomains(ctx context.Context, domain string) ([]string, error) {
	if a.ctURL == "" {
		return nil, nil
	}

	url := fmt.Sprintf("%s/?q=%%25.%s&output=json", a.ctURL, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("certificate transparency endpoint returned %d", resp.StatusCode)
	}

	var entries []struct {
		NameValue string `json:"name_value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, name := range strings.Split(e.NameValue, "\n") {
			name = strings.TrimPrefix(strings.TrimSpace(name), "*.")
			if name == "" || name == domain {
				continue
			}
			if strings.HasSuffix(name, "."+domain) {
				seen[name] = struct{}{}
			}
		}
	}

	subs := make([]string, 0, len(seen))
	for name := range seen {
		subs = append(subs, name)
	}
	sort.Strings(subs)

	return subs, nil
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// fetchTitle downloads the domain's landing page and extracts its <title>.
func (a *Analyzer) fetchTitle(ctx context.Context, domain string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+domain+"/", nil)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Titles live in the head; a bounded read is enough.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	m := titlePattern.FindSubmatch(body)
	if m == nil {
		return "", nil
	}

	return strings.TrimSpace(string(m[1])), nil
}
