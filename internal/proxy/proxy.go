// Package proxy sources a working HTTP(S) egress endpoint for the fetcher
// from a public proxy directory. Free proxies die within minutes, so
// nothing is persisted; every acquisition starts from a fresh directory
// fetch.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoneAvailable means every directory candidate failed the probe. Not
// fatal to the run, but fatal to the video whose acquire stage needed it.
var ErrNoneAvailable = errors.New("no working proxy available")

type Provider struct {
	DirectoryURL string
	ProbeURL     string
	ProbeTimeout time.Duration

	client *http.Client
}

func NewProvider(directoryURL, probeURL string, probeTimeout time.Duration) *Provider {
	return &Provider{
		DirectoryURL: directoryURL,
		ProbeURL:     probeURL,
		ProbeTimeout: probeTimeout,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Acquire fetches the directory and probes candidates in the directory's
// order (most recently verified first) until one answers.
func (p *Provider) Acquire(ctx context.Context) (string, error) {
	candidates, err := p.fetchDirectory(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch proxy directory: %w", err)
	}
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if p.probe(ctx, cand) {
			log.Debug().Str("proxy", cand).Msg("proxy verified")
			return cand, nil
		}
	}
	return "", ErrNoneAvailable
}

func (p *Provider) fetchDirectory(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.DirectoryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	return parseDirectory(body), nil
}

// parseDirectory accepts either the JSON shape {"data":[{"ip","port",
// "protocols"}]} used by geonode-style directories or plain host:port
// lines. Order is preserved as reported.
func parseDirectory(body []byte) []string {
	var doc struct {
		Data []struct {
			IP        string   `json:"ip"`
			Port      string   `json:"port"`
			Protocols []string `json:"protocols"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err == nil && len(doc.Data) > 0 {
		out := make([]string, 0, len(doc.Data))
		for _, d := range doc.Data {
			scheme := "http"
			for _, proto := range d.Protocols {
				if proto == "socks5" || proto == "socks4" {
					scheme = proto
					break
				}
			}
			if d.IP == "" || d.Port == "" {
				continue
			}
			out = append(out, fmt.Sprintf("%s://%s:%s", scheme, d.IP, d.Port))
		}
		return out
	}

	var out []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "http://" + line
		}
		out = append(out, line)
	}
	return out
}

// probe routes one request to a known-good target through the candidate.
func (p *Provider) probe(ctx context.Context, candidate string) bool {
	proxyURL, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	client := &http.Client{
		Timeout:   p.ProbeTimeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode < http.StatusBadRequest
}
