package topic

import (
	"sync"
	"testing"
)

func TestMatcher_AddHas(t *testing.T) {
	m := NewMatcher()

	m.Add(Topic("ns:node-moved"))
	m.Add(Topic("ns:node-moved"))
	m.Add(Topic("ns:zoom-to-bbox:before"))
	m.Add(Topic(""))

	if !m.Has("ns:node-moved") {
		t.Error("expected matcher to have ns:node-moved")
	}
	if m.Has("ns:zoom-to-bbox") {
		t.Error("intermediate node must not count as a pattern")
	}
	if m.Count() != 2 {
		t.Errorf("expected count 2, got %d", m.Count())
	}
}

func TestMatcher_Remove(t *testing.T) {
	m := NewMatcher()

	m.Add("ns:zoom-to-bbox:before")
	m.Add("ns:zoom-to-bbox:after")

	m.Remove("ns:zoom-to-bbox:before")
	m.Remove("ns:missing")

	if m.Has("ns:zoom-to-bbox:before") {
		t.Error("expected pattern removed")
	}
	if !m.Has("ns:zoom-to-bbox:after") {
		t.Error("sibling pattern must survive removal")
	}

	m.Remove("ns:zoom-to-bbox:after")
	if m.Count() != 0 {
		t.Errorf("expected empty matcher, got %d", m.Count())
	}
	if len(m.root.children) != 0 {
		t.Errorf("expected pruned trie, got %d root children", len(m.root.children))
	}
}

func TestMatcher_Match(t *testing.T) {
	m := NewMatcher()
	m.Add("ns:node-moved")
	m.Add("ns:*")
	m.Add("ns:**")
	m.Add("*:*:before")
	m.Add("other:**")

	tests := []struct {
		topic Topic
		want  int
	}{
		{"ns:node-moved", 3},
		{"ns:zoom-to-bbox:before", 2},
		{"ns:zoom-to-bbox:after", 1},
		{"other:x", 1},
		{"unrelated", 0},
		{"", 0},
	}

	for _, tt := range tests {
		got := m.Match(tt.topic)
		if len(got) != tt.want {
			t.Errorf("Match(%q) = %v, want %d patterns", tt.topic, got, tt.want)
		}
	}
}

func TestMatcher_MatchNoDuplicates(t *testing.T) {
	m := NewMatcher()
	m.Add("**:**")

	got := m.Match("a:b:c")
	if len(got) != 1 {
		t.Errorf("expected a single match, got %v", got)
	}
}

func TestMatcher_Clear(t *testing.T) {
	m := NewMatcher()
	m.Add("ns:a")
	m.Add("ns:b")
	m.Clear()

	if m.Count() != 0 {
		t.Errorf("expected 0 after Clear, got %d", m.Count())
	}
}

func TestMatcher_Concurrent(t *testing.T) {
	m := NewMatcher()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Add("ns:**")
				_ = m.Match("ns:node-moved")
				m.Remove("ns:**")
			}
		}()
	}
	wg.Wait()
}
