package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/selivandex/stock-qa-bot/internal/adapters/ai"
	"github.com/selivandex/stock-qa-bot/internal/chunking"
	"github.com/selivandex/stock-qa-bot/internal/financial"
	"github.com/selivandex/stock-qa-bot/internal/index"
	"github.com/selivandex/stock-qa-bot/pkg/embeddings"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

type fakeNews struct {
	items    []models.NewsItem
	err      error
	lastDays int
}

func (f *fakeNews) FetchNews(_ context.Context, _ string, days int) ([]models.NewsItem, error) {
	f.lastDays = days
	return f.items, f.err
}

type fakeMarket struct {
	candidates []financial.Candidate
	err        error
}

func (f *fakeMarket) FetchCandidates(context.Context, string) (string, []financial.Candidate, error) {
	return "005380", f.candidates, f.err
}

type fakeLLM struct {
	mu      sync.Mutex
	calls   [][]ai.Message
	reply   string
	err     error
	release chan struct{}
	entered chan struct{}
}

func (f *fakeLLM) Chat(ctx context.Context, messages []ai.Message, _ ...ai.Option) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding api down")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding api down")
}

// queryEmbedder embeds documents with the hashing embedder and lets tests control queries
type queryEmbedder struct {
	*embeddings.HashingEmbedder
	query func(ctx context.Context) ([]float32, error)
}

func (q queryEmbedder) EmbedQuery(ctx context.Context, _ string) ([]float32, error) {
	return q.query(ctx)
}

func sampleArticles() []models.NewsItem {
	return []models.NewsItem{
		{Title: "현대차 전기차 판매 증가", Content: "현대차 아이오닉 전기차 미국 판매 증가", Link: "https://news.example/ev"},
		{Title: "현대차 전기차 판매 증가", Content: "중복 기사", Link: "https://news.example/ev-dup"},
		{Title: "카카오 플랫폼 규제", Content: "카카오 플랫폼 규제 공정위 과징금 부과 검토", Link: "https://news.example/kakao"},
		{Title: "반도체 수출 회복", Content: "메모리 반도체 수출 회복 삼성 하이닉스", Link: "https://news.example/chip"},
	}
}

func sampleCandidates() []financial.Candidate {
	return []financial.Candidate{{
		Source: "naver",
		Observations: map[financial.Metric]financial.Observation{
			financial.MetricCurrentPrice:  financial.Available(financial.ParseValue("110")),
			financial.MetricPreviousClose: financial.Available(financial.ParseValue("100")),
		},
	}}
}

func newTestEngine(t *testing.T, news *fakeNews, market *fakeMarket, llm *fakeLLM, embedder embeddings.Embedder, topK int) *Engine {
	t.Helper()
	splitter, err := chunking.NewSplitter(200, 20, chunking.WordTokenizer{})
	if err != nil {
		t.Fatalf("NewSplitter: %v", err)
	}
	if embedder == nil {
		embedder = embeddings.NewHashingEmbedder(256)
	}
	e, err := NewEngine(Config{TopK: topK, GenerationTimeout: 5 * time.Second}, Deps{
		News:     news,
		Market:   market,
		Splitter: splitter,
		Embedder: embedder,
		LLM:      llm,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestAsk_EmptyInputsGiveInsufficientAnswer(t *testing.T) {
	llm := &fakeLLM{reply: "should not be used"}
	e := newTestEngine(t,
		&fakeNews{err: errors.New("naver blocked")},
		&fakeMarket{err: errors.New("timeout")},
		llm, nil, 4)

	s, err := e.StartSession(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	report := s.Report()
	if !report.Degraded() || !report.Empty() {
		t.Errorf("report = %+v", report)
	}
	if !errors.Is(report.NewsErr, ErrSourceUnavailable) || !errors.Is(report.MetricsErr, ErrSourceUnavailable) {
		t.Errorf("source errors not reported: %v / %v", report.NewsErr, report.MetricsErr)
	}

	answer, err := s.Ask(context.Background(), "최근 실적은?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.Insufficient || answer.Text != InsufficientAnswer || len(answer.CitedSources) != 0 {
		t.Errorf("answer = %+v", answer)
	}
	if llm.callCount() != 0 {
		t.Errorf("LLM called %d times for empty index", llm.callCount())
	}
	if len(s.History()) != 2 {
		t.Errorf("history length = %d, want 2", len(s.History()))
	}
}

func TestAsk_ConsecutiveQuestionsShareHistory(t *testing.T) {
	llm := &fakeLLM{reply: "답변"}
	e := newTestEngine(t, &fakeNews{items: sampleArticles()}, &fakeMarket{candidates: sampleCandidates()}, llm, nil, 1)

	s, err := e.StartSession(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if r := s.Report(); r.NewsFetched != 4 || r.NewsKept != 3 || r.MetricsAvailable != 2 {
		t.Errorf("report = %+v", r)
	}

	first, err := s.Ask(context.Background(), "현대차 전기차 판매 증가")
	if err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	second, err := s.Ask(context.Background(), "카카오 플랫폼 규제 과징금")
	if err != nil {
		t.Fatalf("second Ask: %v", err)
	}

	if len(first.CitedSources) != 1 || first.CitedSources[0] != "https://news.example/ev" {
		t.Errorf("first cited = %v", first.CitedSources)
	}
	if len(second.CitedSources) != 1 || second.CitedSources[0] != "https://news.example/kakao" {
		t.Errorf("second cited = %v", second.CitedSources)
	}

	history := s.History()
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	wantRoles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	for i, r := range wantRoles {
		if history[i].Role != r {
			t.Errorf("turn %d role = %s, want %s", i, history[i].Role, r)
		}
	}
	if history[1].CitedSources[0] != "https://news.example/ev" {
		t.Errorf("assistant turn lost its sources: %+v", history[1])
	}

	// second prompt = system + 2 prior turns + question
	msgs := llm.calls[1]
	if len(msgs) != 4 {
		t.Fatalf("second prompt has %d messages, want 4", len(msgs))
	}
	if msgs[1].Content != "현대차 전기차 판매 증가" || msgs[2].Role != ai.RoleAssistant {
		t.Errorf("history not in prompt: %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "카카오") {
		t.Errorf("retrieved context missing from system prompt:\n%s", msgs[0].Content)
	}
}

func TestAsk_GenerationFailureKeepsQuestion(t *testing.T) {
	llm := &fakeLLM{err: errors.New("503 from provider")}
	e := newTestEngine(t, &fakeNews{items: sampleArticles()}, &fakeMarket{}, llm, nil, 2)

	s, err := e.StartSession(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	_, err = s.Ask(context.Background(), "전기차 전망은?")
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Stage != "generation" {
		t.Fatalf("expected generation error, got %v", err)
	}

	history := s.History()
	if len(history) != 1 || history[0].Role != models.RoleUser {
		t.Fatalf("history after failure = %+v", history)
	}
	if s.State() != StateReady {
		t.Errorf("state = %s, want ready", s.State())
	}

	llm.err = nil
	llm.reply = "회복"
	if _, err := s.Ask(context.Background(), "다시 질문"); err != nil {
		t.Fatalf("Ask after failure: %v", err)
	}
	if len(s.History()) != 3 {
		t.Errorf("history length = %d, want 3", len(s.History()))
	}
}

func TestAsk_ConcurrentAskIsRejected(t *testing.T) {
	llm := &fakeLLM{reply: "ok", release: make(chan struct{}), entered: make(chan struct{}, 1)}
	e := newTestEngine(t, &fakeNews{items: sampleArticles()}, &fakeMarket{}, llm, nil, 2)

	s, err := e.StartSession(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "첫 질문")
		done <- err
	}()
	<-llm.entered

	if s.State() != StateAnswering {
		t.Errorf("state = %s, want answering", s.State())
	}
	if _, err := s.Ask(context.Background(), "두번째 질문"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}

	close(llm.release)
	if err := <-done; err != nil {
		t.Fatalf("first Ask: %v", err)
	}
}

func TestSession_Reset(t *testing.T) {
	e := newTestEngine(t, &fakeNews{items: sampleArticles()}, &fakeMarket{}, &fakeLLM{reply: "ok"}, nil, 2)
	s, _ := e.StartSession(context.Background(), "현대차", 7)
	_, _ = s.Ask(context.Background(), "질문")

	s.Reset()

	if s.State() != StateIdle || len(s.History()) != 0 {
		t.Errorf("after reset state=%s history=%d", s.State(), len(s.History()))
	}
	if _, err := s.Ask(context.Background(), "질문"); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("expected ErrSessionNotReady, got %v", err)
	}
}

func TestStartSession_EmbeddingFailureAborts(t *testing.T) {
	e := newTestEngine(t, &fakeNews{items: sampleArticles()}, &fakeMarket{}, &fakeLLM{}, failingEmbedder{}, 2)

	s, err := e.StartSession(context.Background(), "현대차", 7)
	if err == nil || s != nil {
		t.Fatalf("expected abort, got session=%v err=%v", s, err)
	}
}

func TestStartSession_DayWindowBounds(t *testing.T) {
	news := &fakeNews{}
	e := newTestEngine(t, news, &fakeMarket{}, &fakeLLM{}, nil, 2)

	tests := map[int]int{0: 7, 3: 3, 90: 30}
	for in, want := range tests {
		s, err := e.StartSession(context.Background(), "현대차", in)
		if err != nil {
			t.Fatalf("StartSession(%d): %v", in, err)
		}
		if news.lastDays != want || s.DayWindow != want {
			t.Errorf("days %d -> fetched %d, session %d, want %d", in, news.lastDays, s.DayWindow, want)
		}
	}

	if _, err := e.StartSession(context.Background(), "  ", 7); !errors.Is(err, ErrEmptyCompany) {
		t.Errorf("expected ErrEmptyCompany, got %v", err)
	}
}

func TestSessions_AreIndependent(t *testing.T) {
	e := newTestEngine(t, &fakeNews{items: sampleArticles()}, &fakeMarket{}, &fakeLLM{reply: "ok"}, nil, 2)
	a, _ := e.StartSession(context.Background(), "현대차", 7)
	b, _ := e.StartSession(context.Background(), "현대차", 7)

	_, _ = a.Ask(context.Background(), "질문")
	if len(b.History()) != 0 {
		t.Errorf("history leaked between sessions")
	}
	if a.ID == b.ID {
		t.Errorf("session ids collide")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&GenerationError{Stage: "generation", Err: errors.New("x")}, "답변을 생성하는"},
		{ErrSessionBusy, "준비 중"},
		{ErrSessionNotReady, "/analyze"},
		{errors.New("boom"), "내부 오류"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("UserMessage(%v) = %q, want containing %q", tt.err, got, tt.want)
		}
	}
	if UserMessage(nil) != "" {
		t.Error("nil error should map to empty message")
	}
}

func TestAsk_StalledQueryEmbeddingTimesOut(t *testing.T) {
	splitter, err := chunking.NewSplitter(200, 20, chunking.WordTokenizer{})
	if err != nil {
		t.Fatalf("NewSplitter: %v", err)
	}
	stalled := queryEmbedder{
		HashingEmbedder: embeddings.NewHashingEmbedder(256),
		query: func(ctx context.Context) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	llm := &fakeLLM{reply: "ok"}
	e, err := NewEngine(Config{TopK: 2, GenerationTimeout: time.Second, QueryTimeout: 50 * time.Millisecond}, Deps{
		News:     &fakeNews{items: sampleArticles()},
		Market:   &fakeMarket{},
		Splitter: splitter,
		Embedder: stalled,
		LLM:      llm,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	s, err := e.StartSession(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), "최근 실적은?")
		done <- err
	}()

	select {
	case err := <-done:
		var genErr *GenerationError
		if !errors.As(err, &genErr) || genErr.Stage != "retrieval" {
			t.Fatalf("expected retrieval error, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Ask did not return within 5s")
	}

	if llm.callCount() != 0 {
		t.Errorf("llm called %d times after retrieval failure", llm.callCount())
	}
	if h := s.History(); len(h) != 1 || h[0].Role != models.RoleUser {
		t.Errorf("history after timeout = %+v", h)
	}
	if s.State() != StateReady {
		t.Errorf("state = %s, want ready", s.State())
	}
}

func TestAsk_SearchFailureKeepsQuestion(t *testing.T) {
	mismatched := queryEmbedder{
		HashingEmbedder: embeddings.NewHashingEmbedder(256),
		query: func(context.Context) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
	llm := &fakeLLM{reply: "ok"}
	e := newTestEngine(t, &fakeNews{items: sampleArticles()}, &fakeMarket{}, llm, mismatched, 2)
	s, err := e.StartSession(context.Background(), "현대차", 7)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := s.Ask(context.Background(), "전기차 전망은?"); !errors.Is(err, index.ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned, got %v", err)
	}
	if h := s.History(); len(h) != 1 || h[0].Content != "전기차 전망은?" {
		t.Errorf("question not recorded: %+v", h)
	}
	if llm.callCount() != 0 {
		t.Errorf("llm called after search failure")
	}
}
