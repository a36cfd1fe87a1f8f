package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// ErrTickerNotFound is returned when no listed company matches the name
var ErrTickerNotFound = errors.New("ticker not found")

var tickerPattern = regexp.MustCompile(`^\d{6}$`)

// Resolver maps a company name to its 6-digit KRX code
type Resolver interface {
	Resolve(ctx context.Context, company string) (string, error)
}

// StaticResolver looks names up in a configured table
type StaticResolver struct {
	tickers map[string]string
}

// NewStaticResolver creates resolver from name:code pairs
func NewStaticResolver(tickers map[string]string) *StaticResolver {
	normalized := make(map[string]string, len(tickers))
	for name, code := range tickers {
		normalized[normalizeName(name)] = strings.TrimSpace(code)
	}
	return &StaticResolver{tickers: normalized}
}

func (r *StaticResolver) Resolve(_ context.Context, company string) (string, error) {
	if code := strings.TrimSpace(company); tickerPattern.MatchString(code) {
		return code, nil
	}
	if code, ok := r.tickers[normalizeName(company)]; ok {
		return code, nil
	}
	return "", ErrTickerNotFound
}

// NaverResolver queries the Naver stock autocomplete endpoint and memoizes hits
type NaverResolver struct {
	fetcher Fetcher
	baseURL string

	mu    sync.RWMutex
	cache map[string]string
}

// NewNaverResolver creates autocomplete-backed resolver
func NewNaverResolver(fetcher Fetcher, baseURL string) *NaverResolver {
	return &NaverResolver{
		fetcher: fetcher,
		baseURL: baseURL,
		cache:   make(map[string]string),
	}
}

type autocompleteResponse struct {
	Items []struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		TypeCode string `json:"typeCode"`
	} `json:"items"`
}

// Resolve prefers an exact name match among KRX listings, then the first KRX item
func (r *NaverResolver) Resolve(ctx context.Context, company string) (string, error) {
	key := normalizeName(company)

	r.mu.RLock()
	code, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return code, nil
	}

	q := url.Values{}
	q.Set("q", company)
	q.Set("target", "stock")

	body, err := r.fetcher.Get(ctx, r.baseURL+"?"+q.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		return "", fmt.Errorf("ticker lookup failed: %w", err)
	}

	var resp autocompleteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode ticker lookup: %w", err)
	}

	var first string
	for _, item := range resp.Items {
		if !tickerPattern.MatchString(item.Code) || !isKRX(item.TypeCode) {
			continue
		}
		if normalizeName(item.Name) == key {
			first = item.Code
			break
		}
		if first == "" {
			first = item.Code
		}
	}
	if first == "" {
		return "", ErrTickerNotFound
	}

	r.mu.Lock()
	r.cache[key] = first
	r.mu.Unlock()

	return first, nil
}

// ChainResolver returns the first successful resolution
type ChainResolver []Resolver

func (c ChainResolver) Resolve(ctx context.Context, company string) (string, error) {
	var errs []error
	for _, r := range c {
		code, err := r.Resolve(ctx, company)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrTickerNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(append([]error{ErrTickerNotFound}, errs...)...)
	}
	return "", ErrTickerNotFound
}

func isKRX(typeCode string) bool {
	switch strings.ToUpper(typeCode) {
	case "", "KOSPI", "KOSDAQ", "KONEX":
		return true
	}
	return false
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
