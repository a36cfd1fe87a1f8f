package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/adapters/config"
	"github.com/selivandex/stock-qa-bot/internal/adapters/market"
	"github.com/selivandex/stock-qa-bot/internal/conversation"
	"github.com/selivandex/stock-qa-bot/internal/financial"
	"github.com/selivandex/stock-qa-bot/internal/reports"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/models"
	"github.com/selivandex/stock-qa-bot/pkg/templates"
)

const (
	maxMessageLength = 4096
	newsPageSize     = 10
	defaultChartDays = 30
	maxChartDays     = 365
)

// Sender is the part of the Telegram API the bot writes through
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// SessionStarter builds a conversation session for a company
type SessionStarter interface {
	StartSession(ctx context.Context, company string, dayWindow int) (*conversation.Session, error)
}

// ReportBuilder produces the /summary report
type ReportBuilder interface {
	Generate(ctx context.Context, record financial.Record, news []models.NewsItem) *reports.CompanyReport
	Render(report *reports.CompanyReport) (string, error)
}

// PriceHistory returns daily bars for a ticker, oldest first
type PriceHistory interface {
	History(ctx context.Context, ticker string) ([]market.PricePoint, error)
}

// Deps groups bot collaborators. Charts is optional.
type Deps struct {
	Engine    SessionStarter
	Reports   ReportBuilder
	Charts    PriceHistory
	Templates templates.Renderer
	Sessions  *SessionStore
}

// Bot serves the stock Q&A conversation over Telegram
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	cfg      *config.TelegramConfig
	rag      *config.RAGConfig
	engine   SessionStarter
	reports  ReportBuilder
	charts   PriceHistory
	tmpl     templates.Renderer
	sessions *SessionStore

	building sync.Map // chatID -> struct{}
	wg       sync.WaitGroup
}

// NewBot creates new Telegram bot
func NewBot(cfg *config.TelegramConfig, rag *config.RAGConfig, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = cfg.Debug

	logger.Info("telegram bot initialized",
		zap.String("username", api.Self.UserName),
	)

	b := newBot(api, cfg, rag, deps)
	b.api = api
	return b, nil
}

func newBot(sender Sender, cfg *config.TelegramConfig, rag *config.RAGConfig, deps Deps) *Bot {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessionStore(rag.SessionTTL)
	}
	return &Bot{
		sender:   sender,
		cfg:      cfg,
		rag:      rag,
		engine:   deps.Engine,
		reports:  deps.Reports,
		charts:   deps.Charts,
		tmpl:     deps.Templates,
		sessions: sessions,
	}
}

// Start listens for updates until ctx is cancelled, then waits for in-flight handlers
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("telegram api is not initialized")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	logger.Info("🤖 telegram bot started, listening for messages")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			if update.Message == nil {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.HandleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

// HandleMessage routes one incoming message
func (b *Bot) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID

	if !b.cfg.IsChatAllowed(chatID) {
		logger.Warn("message from unauthorized chat ignored", zap.Int64("chat_id", chatID))
		return
	}

	command, args, isCommand := parseCommand(message.Text)
	if !isCommand {
		b.handleQuestion(ctx, chatID, message.Text)
		return
	}

	logger.Info("received telegram command",
		zap.String("command", command),
		zap.Int64("from_chat", chatID),
	)

	switch command {
	case "start":
		b.replyTemplate(chatID, "welcome.tmpl", nil)
	case "help":
		b.replyTemplate(chatID, "help.tmpl", map[string]int{
			"DefaultDays": b.rag.DefaultDayWindow,
			"MaxDays":     b.rag.MaxDayWindow,
		})
	case "analyze":
		b.handleAnalyze(ctx, chatID, args)
	case "summary":
		b.handleSummary(ctx, chatID)
	case "news":
		b.handleNews(chatID, args)
	case "chart":
		b.handleChart(ctx, chatID, args)
	case "reset":
		b.sessions.Delete(chatID)
		b.reply(chatID, "🔄 대화를 종료했습니다. /analyze 로 새 분석을 시작하세요.")
	default:
		b.reply(chatID, fmt.Sprintf("❓ 알 수 없는 명령입니다: /%s\n/help 로 명령어를 확인하세요.", command))
	}
}

func (b *Bot) handleAnalyze(ctx context.Context, chatID int64, args []string) {
	company, days := parseAnalyzeArgs(args, b.rag)
	if company == "" {
		b.reply(chatID, "사용법: /analyze &lt;기업명&gt; [기간(일)]\n예: /analyze 삼성전자 7")
		return
	}

	if _, busy := b.building.LoadOrStore(chatID, struct{}{}); busy {
		b.reply(chatID, "⏳ 이미 분석을 준비 중입니다. 잠시만 기다려 주세요.")
		return
	}
	defer b.building.Delete(chatID)

	b.reply(chatID, fmt.Sprintf("🔍 <b>%s</b> 최근 %d일 뉴스와 재무 지표를 수집하고 있습니다...", escape(company), days))
	b.typing(chatID)

	buildCtx, cancel := context.WithTimeout(ctx, b.rag.BuildTimeout)
	defer cancel()

	session, err := b.engine.StartSession(buildCtx, company, days)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("session build timed out", zap.String("company", company), zap.Int64("chat_id", chatID))
			b.reply(chatID, "⌛ 데이터 수집 시간이 초과되었습니다. 기간을 줄여 다시 시도해 주세요.")
			return
		}
		b.reply(chatID, escape(conversation.UserMessage(err)))
		return
	}
	b.sessions.Put(chatID, session)

	report := session.Report()
	b.replyTemplate(chatID, "session_ready.tmpl", map[string]any{
		"Company":          session.Company,
		"Ticker":           session.Ticker,
		"Days":             session.DayWindow,
		"NewsKept":         report.NewsKept,
		"NewsFetched":      report.NewsFetched,
		"NewsSuppressed":   report.NewsSuppressed,
		"MetricsAvailable": report.MetricsAvailable,
		"Warnings":         buildWarnings(report),
	})
}

func buildWarnings(report conversation.BuildReport) []string {
	var warnings []string
	if report.NewsErr != nil {
		warnings = append(warnings, "뉴스를 가져오지 못했습니다.")
	}
	if report.MetricsErr != nil {
		warnings = append(warnings, "재무 지표를 가져오지 못했습니다.")
	}
	if report.Empty() {
		warnings = append(warnings, "수집된 데이터가 없어 답변이 제한될 수 있습니다.")
	}
	return warnings
}

func (b *Bot) handleQuestion(ctx context.Context, chatID int64, text string) {
	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.reply(chatID, escape(conversation.UserMessage(conversation.ErrSessionNotReady)))
		return
	}

	b.typing(chatID)
	answer, err := session.Ask(ctx, text)
	if err != nil {
		b.reply(chatID, escape(conversation.UserMessage(err)))
		return
	}

	b.replyTemplate(chatID, "answer.tmpl", map[string]any{
		"Text":    answer.Text,
		"Sources": answer.CitedSources,
	})
}

func (b *Bot) handleSummary(ctx context.Context, chatID int64) {
	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.reply(chatID, escape(conversation.UserMessage(conversation.ErrSessionNotReady)))
		return
	}
	if b.reports == nil {
		b.reply(chatID, "요약 보고서를 사용할 수 없습니다.")
		return
	}

	b.typing(chatID)
	report := b.reports.Generate(ctx, session.Record(), session.News())
	text, err := b.reports.Render(report)
	if err != nil {
		logger.Error("failed to render report", zap.Error(err), zap.String("company", session.Company))
		b.reply(chatID, escape(conversation.UserMessage(err)))
		return
	}
	b.reply(chatID, text)
}

func (b *Bot) handleNews(chatID int64, args []string) {
	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.reply(chatID, escape(conversation.UserMessage(conversation.ErrSessionNotReady)))
		return
	}

	items := session.News()
	if len(items) == 0 {
		b.reply(chatID, "수집된 뉴스가 없습니다.")
		return
	}

	shown := items
	if !(len(args) > 0 && args[0] == "more") && len(shown) > newsPageSize {
		shown = shown[:newsPageSize]
	}
	b.replyTemplate(chatID, "news_list.tmpl", map[string]any{
		"Company": session.Company,
		"Shown":   len(shown),
		"Total":   len(items),
		"Items":   shown,
		"HasMore": len(shown) < len(items),
	})
}

func (b *Bot) handleChart(ctx context.Context, chatID int64, args []string) {
	session, ok := b.sessions.Get(chatID)
	if !ok {
		b.reply(chatID, escape(conversation.UserMessage(conversation.ErrSessionNotReady)))
		return
	}
	if b.charts == nil || session.Ticker == "" {
		b.reply(chatID, "가격 정보를 조회할 수 없습니다.")
		return
	}

	days := parseChartDays(args)
	b.typing(chatID)

	fetchCtx, cancel := context.WithTimeout(ctx, b.rag.BuildTimeout)
	defer cancel()

	points, err := b.charts.History(fetchCtx, session.Ticker)
	if err != nil {
		logger.Warn("failed to fetch price history",
			zap.Error(err),
			zap.String("ticker", session.Ticker),
			zap.Int64("chat_id", chatID),
		)
		b.reply(chatID, "📉 가격 데이터를 가져오지 못했습니다. 잠시 후 다시 시도해 주세요.")
		return
	}
	sum, ok := market.SummarizePeriod(points, days)
	if !ok {
		b.reply(chatID, "가격 데이터가 없습니다.")
		return
	}

	change := ""
	if pct, ok := sum.ChangePercent(); ok {
		change = financial.FormatChange(pct)
	}
	b.replyTemplate(chatID, "chart.tmpl", map[string]any{
		"Company":  session.Company,
		"Ticker":   session.Ticker,
		"Days":     days,
		"From":     sum.From.Format("2006-01-02"),
		"To":       sum.To.Format("2006-01-02"),
		"Sessions": sum.Sessions,
		"Start":    formatPrice(sum.StartClose),
		"Close":    formatPrice(sum.Close),
		"High":     formatPrice(sum.High),
		"HighDate": sum.HighDate.Format("01-02"),
		"Low":      formatPrice(sum.Low),
		"LowDate":  sum.LowDate.Format("01-02"),
		"Change":   change,
	})
}

func formatPrice(d decimal.Decimal) string {
	return financial.FormatValue(financial.KindPrice, financial.NumberValue(d))
}

func (b *Bot) replyTemplate(chatID int64, name string, data any) {
	text, err := b.tmpl.ExecuteTemplate(name, data)
	if err != nil {
		logger.Error("failed to render template", zap.Error(err), zap.String("template", name))
		b.reply(chatID, "내부 오류가 발생했습니다. 다시 시도해 주세요.")
		return
	}
	b.reply(chatID, text)
}

// reply sends HTML text, splitting it to fit Telegram's message limit
func (b *Bot) reply(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := b.sender.Send(msg); err != nil {
			logger.Error("failed to send telegram message", zap.Error(err), zap.Int64("chat_id", chatID))
			return
		}
	}
}

func (b *Bot) typing(chatID int64) {
	if _, err := b.sender.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		logger.Debug("failed to send chat action", zap.Error(err))
	}
}

// parseCommand splits "/cmd@bot arg1 arg2" into its parts
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	command := fields[0]
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command), fields[1:], true
}

// parseAnalyzeArgs reads "<company words...> [days]"; a numeric last word is the day window
func parseAnalyzeArgs(args []string, rag *config.RAGConfig) (string, int) {
	days := 0
	if n := len(args); n > 1 {
		last := strings.TrimSuffix(args[n-1], "일")
		if d, err := strconv.Atoi(last); err == nil {
			days = d
			args = args[:n-1]
		}
	}
	return strings.TrimSpace(strings.Join(args, " ")), rag.ClampDays(days)
}

// parseChartDays reads an optional "[days]" or "[days]일" argument
func parseChartDays(args []string) int {
	if len(args) == 0 {
		return defaultChartDays
	}
	d, err := strconv.Atoi(strings.TrimSuffix(args[0], "일"))
	if err != nil || d <= 0 {
		return defaultChartDays
	}
	if d > maxChartDays {
		return maxChartDays
	}
	return d
}

// splitMessage cuts text on line boundaries into parts of at most limit runes
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		parts []string
		b     strings.Builder
		n     int
	)
	flush := func() {
		if strings.TrimSpace(b.String()) != "" {
			parts = append(parts, b.String())
		}
		b.Reset()
		n = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		size := utf8.RuneCountInString(line)
		if n > 0 && n+size > limit {
			flush()
		}
		for size > limit {
			r := []rune(line)
			b.WriteString(string(r[:limit]))
			flush()
			line = string(r[limit:])
			size -= limit
		}
		b.WriteString(line)
		n += size
	}
	flush()
	return parts
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
