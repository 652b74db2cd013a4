// Package lineage builds a directed dependency graph over cataloged
// warehouse objects by scanning their DDL for referenced identifiers, and
// answers bounded upstream/downstream traversal queries over that graph.
//
// The scan is a best-effort structural pass over the token stream, not a SQL
// parser: it recognizes the clauses that introduce object references (FROM,
// JOIN, WITH, INSERT INTO, MERGE INTO, ...) and tolerates malformed input by
// producing an empty result rather than an error.
package lineage

import "strings"

// TokenType classifies a scanned token.
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_IDENT
	TOKEN_QUOTED_IDENT
	TOKEN_KEYWORD
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_DOT
	TOKEN_COMMA
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_OTHER
)

// Token is one lexical unit of a definition text.
type Token struct {
	Type    TokenType
	Literal string
}

// Keywords that matter to the dependency scan. Everything else lexes as a
// plain identifier.
var keywords = map[string]struct{}{
	"select": {}, "from": {}, "join": {}, "inner": {}, "left": {}, "right": {},
	"full": {}, "cross": {}, "outer": {}, "lateral": {}, "natural": {},
	"with": {}, "as": {}, "on": {}, "using": {}, "where": {}, "group": {},
	"order": {}, "by": {}, "having": {}, "union": {}, "intersect": {},
	"except": {}, "all": {}, "distinct": {}, "insert": {}, "into": {},
	"update": {}, "delete": {}, "merge": {}, "values": {}, "set": {},
	"create": {}, "replace": {}, "or": {}, "and": {}, "not": {}, "table": {},
	"view": {}, "materialized": {}, "dynamic": {}, "task": {}, "procedure": {},
	"function": {}, "recursive": {}, "limit": {}, "case": {}, "when": {},
	"then": {}, "else": {}, "end": {}, "exists": {}, "in": {}, "is": {},
	"null": {}, "like": {}, "between": {}, "cast": {}, "over": {},
	"partition": {}, "qualify": {}, "sample": {}, "pivot": {}, "unpivot": {},
	"begin": {}, "return": {}, "returns": {}, "language": {}, "call": {},
	"copy": {}, "returning": {},
}

// lookupIdent classifies an unquoted identifier, distinguishing keywords.
func lookupIdent(literal string) TokenType {
	if _, ok := keywords[strings.ToLower(literal)]; ok {
		return TOKEN_KEYWORD
	}
	return TOKEN_IDENT
}

// isKeyword reports whether the token is the given keyword,
// case-insensitively.
func (t Token) isKeyword(kw string) bool {
	return t.Type == TOKEN_KEYWORD && strings.EqualFold(t.Literal, kw)
}

// isIdent reports whether the token can serve as a name part. Quoted
// identifiers always can; unquoted ones must not be keywords.
func (t Token) isIdent() bool {
	return t.Type == TOKEN_IDENT || t.Type == TOKEN_QUOTED_IDENT
}
