package dedup

import (
	"testing"

	"github.com/selivandex/stock-qa-bot/pkg/models"
)

func item(title, content string) models.NewsItem {
	return models.NewsItem{Title: title, Content: content, Link: "https://news.example/" + title}
}

// Twelve articles forming groups that collapse to seven survivors
func sampleNews() []models.NewsItem {
	return []models.NewsItem{
		item("삼성전자 3분기 실적 발표", "삼성전자 영업이익 반도체 부문 회복 메모리 가격 상승"),
		item("삼성전자 3분기 실적 발표", "전혀 다른 본문 내용"),
		item("삼성전자 실적 호조", "삼성전자 영업이익 반도체 부문 회복 메모리 가격 상승 전망"),
		item("현대차 전기차 판매", "현대차 아이오닉 전기차 미국 판매 증가 관세 영향"),
		item("현대차 미국 판매 증가", "현대차 아이오닉 전기차 미국 판매 증가 관세 영향 제한"),
		item("카카오 플랫폼 규제", "카카오 플랫폼 규제 공정위 과징금 부과 검토"),
		item("LG에너지솔루션 배터리 공장", "LG에너지솔루션 배터리 공장 애리조나 착공"),
		item("코스피 외국인 순매수", "코스피 외국인 순매수 지속 환율 하락"),
		item("코스피 외국인 매수세", "코스피 외국인 순매수 지속 환율 하락 마감"),
		item("네이버 AI 검색 출시", "네이버 하이퍼클로바 생성형 검색 서비스 출시"),
		item("셀트리온 바이오시밀러 승인", "셀트리온 바이오시밀러 유럽 승인 획득"),
		item("셀트리온 바이오시밀러 승인", "셀트리온 유럽 허가"),
	}
}

func TestDeduplicate_Scenario(t *testing.T) {
	d := New(DefaultThreshold)
	res := d.Deduplicate(sampleNews())

	if len(res.Items) != 7 {
		for _, it := range res.Items {
			t.Logf("kept: %s", it.Title)
		}
		t.Fatalf("kept %d items, want 7", len(res.Items))
	}
	if res.Suppressed != 5 {
		t.Errorf("suppressed = %d, want 5", res.Suppressed)
	}

	wantTitles := []string{
		"삼성전자 3분기 실적 발표",
		"현대차 전기차 판매",
		"카카오 플랫폼 규제",
		"LG에너지솔루션 배터리 공장",
		"코스피 외국인 순매수",
		"네이버 AI 검색 출시",
		"셀트리온 바이오시밀러 승인",
	}
	for i, want := range wantTitles {
		if res.Items[i].Title != want {
			t.Errorf("item %d = %q, want %q", i, res.Items[i].Title, want)
		}
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	d := New(DefaultThreshold)
	first := d.Deduplicate(sampleNews())
	second := d.Deduplicate(first.Items)

	if len(second.Items) != len(first.Items) {
		t.Fatalf("second pass kept %d, first kept %d", len(second.Items), len(first.Items))
	}
	for i := range first.Items {
		if first.Items[i] != second.Items[i] {
			t.Errorf("item %d changed between passes", i)
		}
	}
}

func TestDeduplicate_PreservesOrderAndSubset(t *testing.T) {
	input := sampleNews()
	res := New(DefaultThreshold).Deduplicate(input)

	pos := 0
	for _, kept := range res.Items {
		for pos < len(input) && input[pos] != kept {
			pos++
		}
		if pos == len(input) {
			t.Fatalf("item %q not found in order in input", kept.Title)
		}
		pos++
	}
}

func TestDeduplicate_EdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		items []models.NewsItem
		want  int
	}{
		{"empty", nil, 0},
		{"single", []models.NewsItem{item("하나", "본문")}, 1},
		{"no vocabulary fails open", []models.NewsItem{item("", ""), item("", "")}, 2},
		{"unrelated", []models.NewsItem{item("반도체 수출", "반도체 수출 증가"), item("유가 하락", "국제 유가 급락")}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(DefaultThreshold).Deduplicate(tt.items)
			if len(res.Items) != tt.want {
				t.Errorf("kept %d, want %d", len(res.Items), tt.want)
			}
		})
	}
}

func TestNew_ThresholdFallback(t *testing.T) {
	for _, thr := range []float64{0, -1, 2} {
		if d := New(thr); d.Threshold != DefaultThreshold {
			t.Errorf("New(%v).Threshold = %v, want %v", thr, d.Threshold, DefaultThreshold)
		}
	}
	if d := New(0.5); d.Threshold != 0.5 {
		t.Errorf("threshold not kept: %v", d.Threshold)
	}
}
