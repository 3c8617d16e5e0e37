package spelling

import (
	"errors"
	"strings"
	"testing"
)

func testIndex() *WordIndex {
	idx := NewWordIndex(2)
	for word, freq := range map[string]int{
		"welcome": 1000,
		"to":      5000,
		"our":     3000,
		"website": 800,
		"contact": 700,
		"us":      4000,
		"hello":   100,
		"help":    500,
	} {
		idx.Add(word, freq)
	}
	return idx
}

func TestCheck(t *testing.T) {
	c := NewChecker(testIndex())

	tests := []struct {
		name   string
		body   string
		extra  []string
		ignore []string
		want   map[string]string
	}{
		{
			name: "single typo with case transfer",
			body: `<h1>Welcom</h1>`,
			want: map[string]string{"Welcom": "Welcome"},
		},
		{
			name: "phrase corrected as a whole",
			body: `<p>Welcom to our websit</p>`,
			want: map[string]string{"Welcom to our websit": "Welcome to our website"},
		},
		{
			name: "correct text yields nothing",
			body: `<a href="/c">Contact us</a>`,
			want: map[string]string{},
		},
		{
			name: "single characters are never surfaced",
			body: `<span>x</span>`,
			want: map[string]string{},
		},
		{
			name: "script and style are not visible",
			body: `<script>Welcom</script><style>websit</style>`,
			want: map[string]string{},
		},
		{
			name:  "extra words are known",
			body:  `<p>Websit</p>`,
			extra: []string{"websit"},
			want:  map[string]string{},
		},
		{
			name:  "extra words are offered as corrections",
			body:  `<p>Sitechek monitoring</p>`,
			extra: []string{"sitecheck"},
			want:  map[string]string{"Sitechek monitoring": "Sitecheck monitoring"},
		},
		{
			name:  "dictionary word still wins over a farther extra word",
			body:  `<p>Welcom</p>`,
			extra: []string{"welcomes"},
			want:  map[string]string{"Welcom": "Welcome"},
		},
		{
			name:   "ignore words are never corrected",
			body:   `<p>Welcom</p><p>websit to us</p>`,
			ignore: []string{"Welcom", "websit"},
			want:   map[string]string{},
		},
		{
			name: "unknown words far from the dictionary are kept",
			body: `<p>Kubernetes</p>`,
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Check([]byte(tt.body), tt.extra, tt.ignore)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Check() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Check()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

type failingIndex struct{}

func (failingIndex) Lookup(string) (Suggestion, error) {
	return Suggestion{}, errors.New("index offline")
}

func TestCheckIndexError(t *testing.T) {
	c := NewChecker(failingIndex{})
	if _, err := c.Check([]byte(`<p>anything here</p>`), nil, nil); err == nil {
		t.Fatal("expected index error to surface")
	}
}

func TestAcceptable(t *testing.T) {
	tests := []struct {
		original, suggestion string
		distance             int
		want                 bool
	}{
		{"Welcom", "Welcome", 1, true},
		{"ab", "ac", 1, true},
		{"Same", "Same", 0, false},
		{"a", "b", 1, false},
		{"abcd", "ab", 2, false},
		{"e-mail", "email", 1, false},
		{"Its: here", "its here", 1, false},
		{"a long phrase with typos", "a long phrase with types", 6, false},
		{"a long phrase with typo", "a long phrase with type", 1, true},
	}
	for _, tt := range tests {
		if got := Acceptable(tt.original, tt.suggestion, tt.distance); got != tt.want {
			t.Errorf("Acceptable(%q, %q, %d) = %v, want %v", tt.original, tt.suggestion, tt.distance, got, tt.want)
		}
	}
}

func TestWordIndexLookup(t *testing.T) {
	idx := testIndex()

	tests := []struct {
		word     string
		term     string
		distance int
		known    bool
	}{
		{"welcome", "welcome", 0, true},
		{"helo", "help", 1, true}, // ties resolved by frequency
		{"websiet", "website", 2, true},
		{"zzzzzz", "zzzzzz", 0, false},
	}
	for _, tt := range tests {
		s, err := idx.Lookup(tt.word)
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", tt.word, err)
		}
		if s.Term != tt.term || s.Distance != tt.distance || s.Known != tt.known {
			t.Errorf("Lookup(%q) = %+v, want {%s %d %v}", tt.word, s, tt.term, tt.distance, tt.known)
		}
	}
}

func TestVisibleTexts(t *testing.T) {
	body := `<html><head><title>Home</title></head><body>
		<p>Hello <b>World</b></p>
		<div>  spaced
		   out </div>
		<noscript>enable js</noscript>
		<span>   </span>
	</body></html>`

	got, err := VisibleTexts([]byte(body))
	if err != nil {
		t.Fatalf("VisibleTexts() error = %v", err)
	}
	want := []string{"Home", "World", "spaced out"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("VisibleTexts() = %q, want %q", got, want)
	}
}

func TestIsDate(t *testing.T) {
	for _, s := range []string{"2024-03-12", "oct 7, 1970", "2006-01-02 15:04:05"} {
		if !isDate(s) {
			t.Errorf("isDate(%q) = false", s)
		}
	}
	if isDate("Welcome") {
		t.Error("isDate(Welcome) = true")
	}
}

func TestTransferCase(t *testing.T) {
	tests := []struct{ original, term, want string }{
		{"WELCOM", "welcome", "WELCOME"},
		{"Welcom", "welcome", "Welcome"},
		{"welcom", "welcome", "welcome"},
	}
	for _, tt := range tests {
		if got := transferCase(tt.original, tt.term); got != tt.want {
			t.Errorf("transferCase(%q) = %q, want %q", tt.original, got, tt.want)
		}
	}
}

func TestLoadDictionary(t *testing.T) {
	idx := NewWordIndex(2)
	n, err := LoadDictionary(idx, strings.NewReader("word 10\n# comment\n\nother\n"))
	if err != nil {
		t.Fatalf("LoadDictionary() error = %v", err)
	}
	if n != 2 || idx.Len() != 2 {
		t.Errorf("loaded %d words (index has %d), want 2", n, idx.Len())
	}

	if _, err := LoadDictionary(idx, strings.NewReader("word ten\n")); err == nil {
		t.Error("expected error for a non-numeric frequency")
	}
}

func TestNewIndexEmbedded(t *testing.T) {
	idx, err := NewIndex("", 2)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	if idx.Len() < 50000 {
		t.Errorf("embedded dictionary has %d words", idx.Len())
	}
	if s, _ := idx.Lookup("website"); !s.Known || s.Distance != 0 {
		t.Errorf("Lookup(website) = %+v", s)
	}
}

func TestCheckEmbeddedDictionary(t *testing.T) {
	idx, err := NewIndex("", DefaultMaxDistance)
	if err != nil {
		t.Fatalf("NewIndex() error = %v", err)
	}
	c := NewChecker(idx)

	prose := `<html><body>
		<h1>Opening hours</h1>
		<p>Fresh bread, pastries and coffee every morning.</p>
		<p>Our bakery has served the neighbourhood for years with handmade loaves baked daily in a stone oven.</p>
		<p>Contact our friendly team for catering, wedding cakes and custom orders.</p>
		<p>New patients are always welcome and we accept most insurance plans.</p>
		<p>Free shipping on orders over fifty dollars and easy returns within thirty days.</p>
		<a href="/book">Book a table</a>
	</body></html>`

	got, err := c.Check([]byte(prose), nil, nil)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("correct prose produced suggestions: %v", got)
	}

	got, err = c.Check([]byte(`<h2>Contact our frendly team</h2><p>Our bakkery</p>`), nil, nil)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	want := map[string]string{
		"Contact our frendly team": "Contact our friendly team",
		"Our bakkery":              "Our bakery",
	}
	if len(got) != len(want) {
		t.Fatalf("Check() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Check()[%q] = %q, want %q", k, got[k], v)
		}
	}
}
