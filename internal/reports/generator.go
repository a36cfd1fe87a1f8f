package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/adapters/ai"
	"github.com/selivandex/stock-qa-bot/internal/financial"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
	"github.com/selivandex/stock-qa-bot/pkg/templates"
)

// DefaultNewsLimit is how many top news items feed the analysis
const DefaultNewsLimit = 10

const analystPrompt = "당신은 한국 주식 시장을 분석하는 증권 애널리스트입니다. 주어진 뉴스만 근거로 답변하세요."

// ChatModel generates one completion
type ChatModel interface {
	Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (string, error)
}

// Generator builds company reports from a merged metrics record and news
type Generator struct {
	llm       ChatModel
	templates templates.Renderer
	newsLimit int
	timeout   time.Duration
}

// NewGenerator creates report generator
func NewGenerator(llm ChatModel, renderer templates.Renderer, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		llm:       llm,
		templates: renderer,
		newsLimit: DefaultNewsLimit,
		timeout:   timeout,
	}
}

// Generate formats every metric and asks the model to analyze the top news.
// A generation failure leaves the metrics part intact and sets AnalysisFailed.
func (g *Generator) Generate(ctx context.Context, record financial.Record, news []models.NewsItem) *CompanyReport {
	report := &CompanyReport{
		Company:     record.Company,
		Ticker:      record.Ticker,
		PriceChange: financial.FormatPriceChange(record),
		GeneratedAt: time.Now(),
	}

	for _, f := range record.Fields() {
		report.Metrics = append(report.Metrics, MetricLine{
			Label: f.Metric.Label(),
			Value: financial.FormatField(f),
		})
	}

	if len(news) > g.newsLimit {
		news = news[:g.newsLimit]
	}
	report.News = news
	if len(news) == 0 {
		return report
	}

	analysis, err := g.analyze(ctx, record.Company, news)
	if err != nil {
		logger.Warn("report analysis failed",
			zap.String("company", record.Company),
			zap.Error(err),
		)
		report.AnalysisFailed = true
		return report
	}
	report.Analysis = analysis

	return report
}

func (g *Generator) analyze(ctx context.Context, company string, news []models.NewsItem) (string, error) {
	prompt, err := g.templates.ExecuteTemplate("report_prompt.tmpl", struct {
		Company string
		News    []models.NewsItem
	}{company, news})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.llm.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: analystPrompt},
		{Role: ai.RoleUser, Content: prompt},
	}, ai.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("failed to generate analysis: %w", err)
	}

	return strings.TrimSpace(out), nil
}

// Render formats report for chat delivery
func (g *Generator) Render(report *CompanyReport) (string, error) {
	return g.templates.ExecuteTemplate("report.tmpl", report)
}
