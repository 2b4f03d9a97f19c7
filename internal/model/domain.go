package model

import "time"

// DNSRecords holds the resolved records of a domain name.
type DNSRecords struct {
	A     []string `json:"a"`
	AAAA  []string `json:"aaaa"`
	MX    []string `json:"mx"`
	NS    []string `json:"ns"`
	TXT   []string `json:"txt"`
	CNAME string   `json:"cname,omitempty"`
}

// DomainReport is the result of analyzing an internet domain:
// DNS records, subdomains discovered via certificate transparency logs,
// and the title of the page served over HTTP.
type DomainReport struct {
	Domain     string     `json:"domain"`
	Records    DNSRecords `json:"records"`
	Subdomains []string   `json:"subdomains"`
	Title      string     `json:"title"`
	AnalyzedAt time.Time  `json:"analyzed_at"`
}
