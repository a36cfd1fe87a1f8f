package news

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

const (
	naverSearchURL  = "https://search.naver.com/search.naver"
	naverPageSize   = 10
	naverSourceName = "naver"
)

var relativeAge = regexp.MustCompile(`(\d+)\s*(분|시간|일|주)\s*전`)

// NaverProvider scrapes Naver news search result pages
type NaverProvider struct {
	fetcher  Fetcher
	enabled  bool
	maxPages int
	baseURL  string
	now      func() time.Time
}

// NewNaverProvider creates Naver search scraper
func NewNaverProvider(fetcher Fetcher, enabled bool, maxPages int) *NaverProvider {
	if maxPages <= 0 {
		maxPages = 5
	}
	return &NaverProvider{
		fetcher:  fetcher,
		enabled:  enabled,
		maxPages: maxPages,
		baseURL:  naverSearchURL,
		now:      time.Now,
	}
}

func (p *NaverProvider) GetName() string {
	return naverSourceName
}

func (p *NaverProvider) IsEnabled() bool {
	return p.enabled
}

// FetchNews walks result pages in order. A failed page ends the walk; items
// from earlier pages are kept.
func (p *NaverProvider) FetchNews(ctx context.Context, company string, days int) ([]models.NewsItem, error) {
	if !p.enabled {
		return nil, nil
	}

	items := make([]models.NewsItem, 0, p.maxPages*naverPageSize)

	for page := 1; page <= p.maxPages; page++ {
		body, err := p.fetcher.Get(ctx, p.pageURL(company, days, page), nil)
		if err != nil {
			if len(items) > 0 {
				logger.Warn("naver page fetch failed, keeping earlier pages",
					zap.String("company", company),
					zap.Int("page", page),
					zap.Error(err),
				)
				break
			}
			return nil, fmt.Errorf("failed to fetch naver page %d: %w", page, err)
		}

		pageItems, err := p.parsePage(body)
		if err != nil {
			return nil, err
		}
		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
	}

	logger.Debug("naver news fetched",
		zap.String("company", company),
		zap.Int("items", len(items)),
	)

	return items, nil
}

func (p *NaverProvider) pageURL(company string, days, page int) string {
	now := p.now()
	from := now.AddDate(0, 0, -days).Format("20060102")
	to := now.Format("20060102")

	q := url.Values{}
	q.Set("where", "news")
	q.Set("query", company)
	q.Set("nso", fmt.Sprintf("so:r,p:from%sto%s", from, to))
	q.Set("start", strconv.Itoa((page-1)*naverPageSize+1))

	return p.baseURL + "?" + q.Encode()
}

func (p *NaverProvider) parsePage(body []byte) ([]models.NewsItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse naver page: %w", err)
	}

	var items []models.NewsItem
	doc.Find("ul.list_news > li").Each(func(_ int, s *goquery.Selection) {
		anchor := s.Find("a.news_tit").First()
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return
		}
		link, _ := anchor.Attr("href")

		item := models.NewsItem{
			Source:  naverSourceName,
			Title:   title,
			Link:    link,
			Content: strings.TrimSpace(s.Find("div.news_dsc").First().Text()),
		}
		s.Find("span.info").EachWithBreak(func(_ int, info *goquery.Selection) bool {
			if ts, ok := parseNaverDate(strings.TrimSpace(info.Text()), p.now()); ok {
				item.PublishedAt = ts
				return false
			}
			return true
		})

		items = append(items, item)
	})

	return items, nil
}

// parseNaverDate understands "3시간 전" style ages and "2024.10.01." dates
func parseNaverDate(text string, now time.Time) (time.Time, bool) {
	if m := relativeAge.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "분":
			return now.Add(-time.Duration(n) * time.Minute), true
		case "시간":
			return now.Add(-time.Duration(n) * time.Hour), true
		case "일":
			return now.AddDate(0, 0, -n), true
		case "주":
			return now.AddDate(0, 0, -7*n), true
		}
	}

	if ts, err := time.ParseInLocation("2006.01.02.", text, seoul); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

var seoul = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()
