package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/internal/financial"
	"github.com/selivandex/stock-qa-bot/internal/index"
	"github.com/selivandex/stock-qa-bot/pkg/logger"
	"github.com/selivandex/stock-qa-bot/pkg/metrics"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// State of a session
type State int

const (
	StateIdle State = iota
	StateReady
	StateAnswering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateAnswering:
		return "answering"
	default:
		return "unknown"
	}
}

// Answer is the reply to one question
type Answer struct {
	Text         string
	CitedSources []string
	Insufficient bool
	Retrieved    []index.Hit
}

// Session owns one company's index and conversation history.
// At most one Ask runs at a time; the index is read-only once built.
type Session struct {
	ID        string
	Company   string
	Ticker    string
	DayWindow int
	CreatedAt time.Time

	engine *Engine
	askMu  sync.Mutex

	mu      sync.RWMutex
	state   State
	index   *index.Index
	history []models.ConversationTurn
	news    []models.NewsItem
	record  financial.Record
	report  BuildReport
}

// Ask retrieves the most relevant chunks and generates a grounded answer.
// On success both turns are appended to history; on generation failure only
// the question is appended and a *GenerationError is returned.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	if !s.askMu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.askMu.Unlock()

	question = strings.TrimSpace(question)

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, ErrSessionNotReady
	}
	if question == "" {
		s.mu.Unlock()
		return nil, ErrEmptyQuestion
	}
	s.state = StateAnswering
	idx := s.index
	history := append([]models.ConversationTurn(nil), s.history...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == StateAnswering {
			s.state = StateReady
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	log := logger.Named("conversation").With(
		zap.String("session_id", s.ID),
		zap.String("company", s.Company),
	)

	if idx.Len() == 0 {
		answer := &Answer{Text: InsufficientAnswer, Insufficient: true}
		s.appendTurns(question, answer)
		s.recordAsk(question, answer, true, start)
		log.Info("answered with insufficient information (empty index)")
		return answer, nil
	}

	e := s.engine
	embedCtx, cancelEmbed := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	qvec, err := e.deps.Embedder.EmbedQuery(embedCtx, question)
	cancelEmbed()
	if err != nil {
		s.appendQuestion(question)
		s.recordAsk(question, nil, false, start)
		log.Warn("query embedding failed", zap.Error(err))
		return nil, &GenerationError{Stage: "retrieval", Err: err}
	}

	hits, err := idx.Search(qvec, e.cfg.TopK)
	if err != nil {
		// query and index come from the same embedder, so this is an invariant violation
		s.appendQuestion(question)
		s.recordAsk(question, nil, false, start)
		log.Error("index search failed", zap.Error(err))
		return nil, err
	}

	messages, err := BuildMessages(s.Company, hits, history, question)
	if err != nil {
		s.appendQuestion(question)
		s.recordAsk(question, nil, false, start)
		log.Error("prompt rendering failed", zap.Error(err))
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout)
	defer cancel()

	text, err := e.deps.LLM.Chat(genCtx, messages)
	if err != nil {
		s.appendQuestion(question)
		s.recordAsk(question, nil, false, start)
		log.Warn("answer generation failed", zap.Error(err))
		return nil, &GenerationError{Stage: "generation", Err: err}
	}

	answer := &Answer{
		Text:         strings.TrimSpace(text),
		CitedSources: citedSources(hits),
		Retrieved:    hits,
	}
	s.appendTurns(question, answer)
	s.recordAsk(question, answer, true, start)

	log.Info("💬 Question answered",
		zap.Int("retrieved", len(hits)),
		zap.Int("cited", len(answer.CitedSources)),
		zap.Duration("latency", time.Since(start)),
	)

	return answer, nil
}

// appendQuestion and appendTurns skip writing when Reset ran during Ask
func (s *Session) appendQuestion(question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAnswering {
		return
	}
	s.history = append(s.history, models.ConversationTurn{
		CreatedAt: time.Now(),
		Role:      models.RoleUser,
		Content:   question,
	})
}

func (s *Session) appendTurns(question string, answer *Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAnswering {
		return
	}
	now := time.Now()
	s.history = append(s.history,
		models.ConversationTurn{CreatedAt: now, Role: models.RoleUser, Content: question},
		models.ConversationTurn{
			CreatedAt:    now,
			Role:         models.RoleAssistant,
			Content:      answer.Text,
			CitedSources: append([]string(nil), answer.CitedSources...),
		},
	)
}

func (s *Session) recordAsk(question string, answer *Answer, ok bool, start time.Time) {
	m := &metrics.AskMetric{
		Timestamp:   time.Now(),
		SessionID:   s.ID,
		Company:     s.Company,
		QueryLength: len([]rune(question)),
		Success:     ok,
		LatencyMs:   time.Since(start).Milliseconds(),
	}
	if answer != nil {
		m.Retrieved = len(answer.Retrieved)
		m.CitedSources = len(answer.CitedSources)
		m.Insufficient = answer.Insufficient
	}
	if err := s.engine.deps.Metrics.Add(m); err != nil {
		logger.Warn("failed to record ask metric", zap.Error(err))
	}
}

// Reset drops the index and history. The session must be rebuilt to answer again.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.index = nil
	s.history = nil
}

// State returns current lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// History returns a copy of the conversation so far
func (s *Session) History() []models.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConversationTurn, len(s.history))
	copy(out, s.history)
	return out
}

// News returns the deduplicated articles the session was built from
func (s *Session) News() []models.NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.NewsItem(nil), s.news...)
}

// Record returns the merged financial record
func (s *Session) Record() financial.Record {
	return s.record
}

// Report returns what went into the index
func (s *Session) Report() BuildReport {
	return s.report
}
