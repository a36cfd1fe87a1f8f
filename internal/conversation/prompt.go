package conversation

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/selivandex/stock-qa-bot/internal/adapters/ai"
	"github.com/selivandex/stock-qa-bot/internal/index"
	"github.com/selivandex/stock-qa-bot/pkg/models"
)

// InsufficientAnswer is returned without calling the model when nothing was indexed
const InsufficientAnswer = "수집된 뉴스와 재무 정보가 없어 질문에 답변할 수 있는 근거가 부족합니다. 다른 기업이나 더 긴 기간으로 다시 분석해 보세요."

var systemTemplate = template.Must(template.New("system").Parse(`당신은 기업 분석 전문 AI 어시스턴트입니다. 분석 대상 기업은 {{.Company}}입니다.
아래 문맥만을 근거로 질문에 상세하고 통찰력 있는 답변을 제공하세요.

문맥:
{{range .Contexts}}[{{.Rank}}] ({{.Kind}}{{if .Link}}, {{.Link}}{{end}})
{{.Text}}

{{end}}답변 지침:
1. 최근 뉴스와 재무 데이터를 종합적으로 분석하세요.
2. 기업의 최근 실적과 향후 성장 전망을 명확히 설명하세요.
3. 투자 관점에서 중요한 인사이트를 제공하세요.
4. 데이터 기반의 객관적이고 상세한 답변을 제공하세요.
5. 문맥에 없는 정보는 추측하지 말고 부족하다고 솔직히 밝히세요.
`))

type promptContext struct {
	Rank int
	Kind models.SourceKind
	Link string
	Text string
}

// BuildMessages assembles the grounded prompt: system text with retrieved
// context, prior turns in order, then the new question.
func BuildMessages(company string, hits []index.Hit, history []models.ConversationTurn, question string) ([]ai.Message, error) {
	data := struct {
		Company  string
		Contexts []promptContext
	}{Company: company}

	for _, h := range hits {
		data.Contexts = append(data.Contexts, promptContext{
			Rank: h.Rank,
			Kind: h.Chunk.Metadata.SourceKind,
			Link: h.Chunk.Metadata.Link(),
			Text: strings.TrimSpace(h.Chunk.Text),
		})
	}

	var system strings.Builder
	if err := systemTemplate.Execute(&system, data); err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: system.String()})
	for _, turn := range history {
		role := ai.RoleUser
		if turn.Role == models.RoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: question})

	return messages, nil
}

// citedSources returns distinct news links in rank order
func citedSources(hits []index.Hit) []string {
	seen := make(map[string]bool, len(hits))
	var links []string
	for _, h := range hits {
		if h.Chunk.Metadata.SourceKind != models.SourceKindNews {
			continue
		}
		link := h.Chunk.Metadata.Link()
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}
