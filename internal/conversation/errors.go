package conversation

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/selivandex/stock-qa-bot/pkg/logger"
)

var (
	// ErrSourceUnavailable marks a news or metrics source that failed or returned nothing.
	// It is reported on the session, never returned from Ask.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEmptyCorpus means the session was built with nothing to retrieve
	ErrEmptyCorpus = errors.New("no news or financial data to index")

	ErrSessionNotReady = errors.New("session is not ready")
	ErrSessionBusy     = errors.New("session is answering another question")
	ErrEmptyCompany    = errors.New("company name is empty")
	ErrEmptyQuestion   = errors.New("question is empty")
)

// GenerationError wraps a failed answer attempt. The question is kept in history.
type GenerationError struct {
	Stage string // "retrieval" or "generation"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UserMessage converts an error into text suitable for the chat user.
// Unexpected errors are logged as internal failures.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var genErr *GenerationError
	switch {
	case errors.As(err, &genErr):
		return "답변을 생성하는 중 오류가 발생했습니다. 잠시 후 다시 질문해 주세요."
	case errors.Is(err, ErrSessionBusy):
		return "이전 질문에 대한 답변을 준비 중입니다. 잠시만 기다려 주세요."
	case errors.Is(err, ErrSessionNotReady):
		return "먼저 분석할 기업을 선택해 주세요. 예: /analyze 삼성전자"
	case errors.Is(err, ErrEmptyCompany):
		return "기업명을 입력해 주세요."
	case errors.Is(err, ErrEmptyQuestion):
		return "질문을 입력해 주세요."
	case errors.Is(err, ErrSourceUnavailable):
		return "데이터를 가져오지 못했습니다. 잠시 후 다시 시도해 주세요."
	default:
		logger.Error("internal error surfaced to user", zap.Error(err))
		return "내부 오류가 발생했습니다. 다시 시도해 주세요."
	}
}
