// Package identity supplies randomized browser fingerprints and rotates
// egress proxies so repeated visits do not present a stable signature.
package identity

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// Fingerprint describes one synthetic browser identity.
type Fingerprint struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

var viewports = [][2]int{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

var locales = []string{"en-US", "en-CA"}

// Pool hands out fingerprints and cycles through configured proxies.
type Pool struct {
	mu       sync.Mutex
	proxies  []string
	proxyIdx int
}

// NewPool builds a Pool. proxies may be empty, in which case NextProxy
// always returns "".
func NewPool(proxies []string) *Pool {
	return &Pool{proxies: append([]string(nil), proxies...)}
}

// Next returns a randomized fingerprint.
func (p *Pool) Next() Fingerprint {
	vp := viewports[randIndex(len(viewports))]
	return Fingerprint{
		UserAgent:      userAgents[randIndex(len(userAgents))],
		ViewportWidth:  vp[0],
		ViewportHeight: vp[1],
		Locale:         locales[randIndex(len(locales))],
	}
}

// NextProxy returns the next proxy URL in round-robin order, or "" when
// no proxies are configured.
func (p *Pool) NextProxy() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return ""
	}
	proxy := p.proxies[p.proxyIdx%len(p.proxies)]
	p.proxyIdx++
	return proxy
}

func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(idx.Int64())
}
