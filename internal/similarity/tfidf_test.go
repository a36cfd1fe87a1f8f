package similarity

import (
	"errors"
	"math"
	"testing"
)

func TestCompute_SymmetryAndDiagonal(t *testing.T) {
	docs := []string{
		"삼성전자 3분기 영업이익 발표 반도체 회복",
		"삼성전자 반도체 회복 기대감에 주가 상승",
		"현대차 전기차 판매 호조",
		"",
	}

	m, err := Compute(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range docs {
		if m.At(i, i) != 1 {
			t.Errorf("score(%d,%d) = %.3f, want 1", i, i, m.At(i, i))
		}
		for j := range docs {
			if m.At(i, j) != m.At(j, i) {
				t.Errorf("score(%d,%d)=%.6f != score(%d,%d)=%.6f", i, j, m.At(i, j), j, i, m.At(j, i))
			}
			if m.At(i, j) < 0 || m.At(i, j) > 1 {
				t.Errorf("score(%d,%d)=%.3f out of range", i, j, m.At(i, j))
			}
		}
	}

	if m.At(0, 1) <= m.At(0, 2) {
		t.Errorf("related articles should score higher than unrelated: %.3f <= %.3f", m.At(0, 1), m.At(0, 2))
	}
}

func TestCompute_IdenticalDocuments(t *testing.T) {
	m, err := Compute([]string{"same words here", "same words here"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(m.At(0, 1)-1) > 1e-9 {
		t.Errorf("identical documents scored %.6f, want 1", m.At(0, 1))
	}
}

func TestCompute_DownWeightsUbiquitousTerms(t *testing.T) {
	// "company" appears everywhere, so sharing it must count for less than sharing a rare term
	docs := []string{
		"company company merger",
		"company company lawsuit",
		"company merger",
		"company dividend",
	}
	m, err := Compute(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.At(0, 2) <= m.At(0, 1) {
		t.Errorf("rare shared term should dominate: sim(0,2)=%.3f sim(0,1)=%.3f", m.At(0, 2), m.At(0, 1))
	}
}

func TestCompute_Degenerate(t *testing.T) {
	for _, docs := range [][]string{nil, {"only one"}} {
		m, err := Compute(docs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Size() != len(docs) {
			t.Errorf("size = %d, want %d", m.Size(), len(docs))
		}
	}
}

func TestCompute_EmptyVocabulary(t *testing.T) {
	_, err := Compute([]string{"", "a", "!"})
	if !errors.Is(err, ErrEmptyVocabulary) {
		t.Fatalf("expected ErrEmptyVocabulary, got %v", err)
	}
}
