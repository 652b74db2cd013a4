package lineage

import "testing"

func TestTokenizeBasicSelect(t *testing.T) {
	tokens := Tokenize("SELECT id, name FROM analytics.public.orders")

	want := []struct {
		typ     TokenType
		literal string
	}{
		{TOKEN_KEYWORD, "SELECT"},
		{TOKEN_IDENT, "id"},
		{TOKEN_COMMA, ","},
		{TOKEN_IDENT, "name"},
		{TOKEN_KEYWORD, "FROM"},
		{TOKEN_IDENT, "analytics"},
		{TOKEN_DOT, "."},
		{TOKEN_IDENT, "public"},
		{TOKEN_DOT, "."},
		{TOKEN_IDENT, "orders"},
	}

	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Type != w.typ || tokens[i].Literal != w.literal {
			t.Errorf("token %d = {%d %q}, want {%d %q}", i, tokens[i].Type, tokens[i].Literal, w.typ, w.literal)
		}
	}
}

func TestTokenizeSkipsComments(t *testing.T) {
	tokens := Tokenize("SELECT 1 -- trailing comment\n/* block\ncomment */ FROM t")

	var literals []string
	for _, tok := range tokens {
		literals = append(literals, tok.Literal)
	}
	want := []string{"SELECT", "1", "FROM", "t"}
	if len(literals) != len(want) {
		t.Fatalf("got %v, want %v", literals, want)
	}
	for i := range want {
		if literals[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, literals[i], want[i])
		}
	}
}

func TestTokenizeQuotedIdentifier(t *testing.T) {
	tokens := Tokenize(`SELECT * FROM "My Table"`)

	last := tokens[len(tokens)-1]
	if last.Type != TOKEN_QUOTED_IDENT {
		t.Fatalf("got type %d, want TOKEN_QUOTED_IDENT", last.Type)
	}
	if last.Literal != "My Table" {
		t.Errorf("got %q, want %q", last.Literal, "My Table")
	}
}

func TestTokenizeQuotedIdentifierEscape(t *testing.T) {
	tokens := Tokenize(`SELECT "a""b"`)
	last := tokens[len(tokens)-1]
	if last.Literal != `a"b` {
		t.Errorf("got %q, want %q", last.Literal, `a"b`)
	}
}

func TestTokenizeStringLiteral(t *testing.T) {
	tokens := Tokenize("SELECT 'it''s' FROM t")
	if tokens[1].Type != TOKEN_STRING {
		t.Fatalf("got type %d, want TOKEN_STRING", tokens[1].Type)
	}
	if tokens[1].Literal != "it's" {
		t.Errorf("got %q, want %q", tokens[1].Literal, "it's")
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tokens := Tokenize("SELECT 42, 3.14, 1e9")
	var nums []string
	for _, tok := range tokens {
		if tok.Type == TOKEN_NUMBER {
			nums = append(nums, tok.Literal)
		}
	}
	want := []string{"42", "3.14", "1e9"}
	if len(nums) != len(want) {
		t.Fatalf("got %v, want %v", nums, want)
	}
	for i := range want {
		if nums[i] != want[i] {
			t.Errorf("number %d = %q, want %q", i, nums[i], want[i])
		}
	}
}

func TestTokenizeDollarIdentifier(t *testing.T) {
	tokens := Tokenize("SELECT col$1 FROM stage$data")
	if tokens[1].Type != TOKEN_IDENT || tokens[1].Literal != "col$1" {
		t.Errorf("got {%d %q}, want ident col$1", tokens[1].Type, tokens[1].Literal)
	}
}

func TestTokenizeEmptyInput(t *testing.T) {
	if tokens := Tokenize(""); len(tokens) != 0 {
		t.Errorf("got %d tokens for empty input, want 0", len(tokens))
	}
	if tokens := Tokenize("   \n\t "); len(tokens) != 0 {
		t.Errorf("got %d tokens for whitespace input, want 0", len(tokens))
	}
}
