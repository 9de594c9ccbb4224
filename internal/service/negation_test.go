package service

import (
	"testing"

	"surveysearch/internal/utils"
)

func TestMatchKeyword(t *testing.T) {
	markers := utils.DefaultNegationMarkers

	tests := []struct {
		name    string
		text    string
		keyword string
		want    bool
	}{
		{name: "plain hit", text: "I run every morning before work", keyword: "run", want: true},
		{name: "case insensitive", text: "Running is my hobby", keyword: "running", want: true},
		{name: "absent", text: "I like swimming", keyword: "run", want: false},
		{name: "never before keyword", text: "has never run regularly", keyword: "run", want: false},
		{name: "don't have", text: "I don't have a car at the moment", keyword: "car", want: false},
		{name: "without", text: "living without a car is fine", keyword: "car", want: false},
		{name: "negation outside window", text: "I never liked team sports, but these days I run", keyword: "run", want: true},
		{name: "clause break stops context", text: "not much else; running daily", keyword: "running", want: true},
		{name: "second occurrence positive", text: "I never run at night. I run in the morning", keyword: "run", want: true},
		{name: "no inside know", text: "you know I shop online a lot", keyword: "shop online", want: true},
		{name: "no as word", text: "no shopping online for me", keyword: "shopping online", want: false},
		{name: "none", text: "none has pets", keyword: "pets", want: false},
		{name: "later negation in english", text: "I love running and never smoke", keyword: "running", want: true},
		{name: "later denial of another activity", text: "shops online but does not cook", keyword: "shops online", want: true},
		{name: "trailing english negation", text: "pets: none", keyword: "pets", want: true},
		{name: "korean negated suffix", text: "운동은 하지 않아요", keyword: "운동", want: false},
		{name: "korean absence", text: "자동차가 없어요", keyword: "자동차", want: false},
		{name: "korean 안 prefix", text: "요즘 운동 안 해요", keyword: "운동", want: false},
		{name: "korean 안 inside word", text: "안녕하세요 저는 매일 운동해요", keyword: "운동", want: true},
		{name: "korean positive", text: "매일 아침 운동을 합니다", keyword: "운동", want: true},
		{name: "blank keyword", text: "anything", keyword: "  ", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchKeyword(tt.text, tt.keyword, DefaultNegationWindow, markers)
			if got != tt.want {
				t.Errorf("MatchKeyword(%q, %q) = %v, want %v", tt.text, tt.keyword, got, tt.want)
			}
		})
	}
}

func TestMatchKeywordWindowIsConfigurable(t *testing.T) {
	text := "never really enjoyed it but I run"
	if !MatchKeyword(text, "run", 5, []string{"never"}) {
		t.Error("small window should not reach the marker")
	}
	if MatchKeyword(text, "run", 40, []string{"never"}) {
		t.Error("large window should reach the marker")
	}
}

func TestNegationMatcherMatchAll(t *testing.T) {
	m := NewNegationMatcher(DefaultNegationWindow, utils.DefaultNegationMarkers)
	got := m.MatchAll("I shop online often but never run", []string{"shop online", "run", " ", "run", "cook"})

	want := map[string]bool{"shop online": true, "run": false, "cook": false}
	if len(got) != len(want) {
		t.Fatalf("MatchAll() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("MatchAll()[%q] = %v, want %v", k, got[k], v)
		}
	}
}
