package lineage

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/snowline/pkg/catalog"
	"github.com/leapstack-labs/snowline/pkg/identifier"
)

// CatalogIndex is the read-only lookup structure over one catalog snapshot,
// shared by every extraction in a build. It resolves fully qualified,
// schema-qualified, and bare references.
type CatalogIndex struct {
	byKey map[string]catalog.ObjectType
	// byName maps bare object name to every qualified key carrying it.
	byName map[string][]string
	// bySchemaName maps SCHEMA.NAME to every qualified key carrying it.
	bySchemaName map[string][]string
}

// NewCatalogIndex builds the index from a set of records.
func NewCatalogIndex(records []catalog.ObjectRecord) *CatalogIndex {
	idx := &CatalogIndex{
		byKey:        make(map[string]catalog.ObjectType, len(records)),
		byName:       make(map[string][]string),
		bySchemaName: make(map[string][]string),
	}
	for _, r := range records {
		key := r.Key()
		if _, ok := idx.byKey[key]; ok {
			continue
		}
		idx.byKey[key] = r.ObjectType
		qn := r.QualifiedName
		idx.byName[qn.Name] = append(idx.byName[qn.Name], key)
		idx.bySchemaName[qn.Schema+"."+qn.Name] = append(idx.bySchemaName[qn.Schema+"."+qn.Name], key)
	}
	for _, keys := range idx.byName {
		sort.Strings(keys)
	}
	for _, keys := range idx.bySchemaName {
		sort.Strings(keys)
	}
	return idx
}

// Has reports whether a fully qualified key is cataloged.
func (idx *CatalogIndex) Has(key string) bool {
	_, ok := idx.byKey[key]
	return ok
}

// Len returns the number of indexed objects.
func (idx *CatalogIndex) Len() int { return len(idx.byKey) }

// Resolve maps a parsed reference to a cataloged key. Bare names prefer the
// referencing object's schema, then its database; anything still ambiguous
// is reported unresolved rather than guessed.
func (idx *CatalogIndex) Resolve(parts []string, self identifier.QualifiedName) (key string, ok bool) {
	switch len(parts) {
	case 3:
		key = parts[0] + "." + parts[1] + "." + parts[2]
		if idx.Has(key) {
			return key, true
		}
		return key, false

	case 2:
		// Same database first.
		key = self.Database + "." + parts[0] + "." + parts[1]
		if idx.Has(key) {
			return key, true
		}
		candidates := idx.bySchemaName[parts[0]+"."+parts[1]]
		if len(candidates) == 1 {
			return candidates[0], true
		}
		return key, false

	case 1:
		sameSchema := self.Database + "." + self.Schema + "." + parts[0]
		if idx.Has(sameSchema) {
			return sameSchema, true
		}
		candidates := idx.byName[parts[0]]
		if len(candidates) == 1 {
			return candidates[0], true
		}
		// Multiple matches: same database disambiguates only if unique there.
		var inDB []string
		for _, c := range candidates {
			if strings.HasPrefix(c, self.Database+".") {
				inDB = append(inDB, c)
			}
		}
		if len(inDB) == 1 {
			return inDB[0], true
		}
		return sameSchema, false
	}
	return "", false
}

// ExtractResult is the outcome of scanning one object's definition.
type ExtractResult struct {
	// References maps resolved cataloged keys to the edge kind that
	// discovered them.
	References map[string]EdgeKind
	// Unresolved lists referenced identifiers with no cataloged match,
	// sorted.
	Unresolved []string
	// ParseSkipped is set when the definition text did not look like SQL at
	// all; the result set is then empty by construction.
	ParseSkipped bool
}

// Extract scans an object's definition text for references to other
// cataloged objects. It never fails: malformed or partial SQL yields an
// empty, parse-skipped result.
func Extract(definition string, typ catalog.ObjectType, idx *CatalogIndex, self identifier.QualifiedName) ExtractResult {
	result := ExtractResult{References: make(map[string]EdgeKind)}
	if strings.TrimSpace(definition) == "" {
		// Base tables and definition-less records depend on nothing.
		return result
	}

	tokens := Tokenize(definition)
	if !looksLikeSQL(tokens) {
		result.ParseSkipped = true
		return result
	}

	switch typ {
	case catalog.TypeView, catalog.TypeMaterializedView, catalog.TypeDynamicTable:
		extractQueryRefs(tokens, idx, self, &result)
	case catalog.TypeTask, catalog.TypeProcedure, catalog.TypeFunction:
		extractBodyRefs(tokens, idx, self, &result)
	default:
		// Tables with definition text (e.g. CTAS leftovers) get the
		// query-shaped scan too.
		extractQueryRefs(tokens, idx, self, &result)
	}

	delete(result.References, self.Key())
	sort.Strings(result.Unresolved)
	return result
}

// statementKeywords are the keywords that introduce a SQL statement or
// clause worth scanning. Keyword-shaped English words ("not", "and", "as")
// deliberately do not count, so prose and garbage get parse-skipped.
var statementKeywords = map[string]struct{}{
	"select": {}, "from": {}, "join": {}, "with": {}, "insert": {},
	"update": {}, "delete": {}, "merge": {}, "create": {}, "call": {},
	"begin": {},
}

// looksLikeSQL reports whether the token stream contains at least one
// statement-introducing keyword; definitions without any are counted as
// parse-skipped.
func looksLikeSQL(tokens []Token) bool {
	for _, tok := range tokens {
		if tok.Type != TOKEN_KEYWORD {
			continue
		}
		if _, ok := statementKeywords[strings.ToLower(tok.Literal)]; ok {
			return true
		}
	}
	return false
}

// extractQueryRefs collects table references after FROM and JOIN keywords,
// excluding CTE-local names, which are not catalog objects.
func extractQueryRefs(tokens []Token, idx *CatalogIndex, self identifier.QualifiedName, result *ExtractResult) {
	ctes := collectCTENames(tokens)

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].isKeyword("from") && !tokens[i].isKeyword("join") {
			continue
		}

		j := i + 1
		for j < len(tokens) {
			// Derived table or subquery: skip, its FROM clauses are found
			// by the outer loop anyway.
			if j < len(tokens) && tokens[j].Type == TOKEN_LPAREN {
				break
			}
			if j < len(tokens) && tokens[j].isKeyword("lateral") {
				j++
				continue
			}

			parts, next := readDottedName(tokens, j)
			if parts == nil {
				break
			}

			if len(parts) == 1 {
				if _, isCTE := ctes[parts[0]]; isCTE {
					j = next
				} else {
					recordRef(parts, idx, self, EdgeDirect, result)
					j = next
				}
			} else {
				recordRef(parts, idx, self, EdgeDirect, result)
				j = next
			}

			// Comma-separated FROM list: skip an optional alias, then
			// continue with the next table reference.
			j = skipAlias(tokens, j)
			if j < len(tokens) && tokens[j].Type == TOKEN_COMMA && tokens[i].isKeyword("from") {
				j++
				continue
			}
			break
		}
	}
}

// extractBodyRefs scans a procedural body for any dotted-name-shaped token
// sequence that matches a cataloged object. Procedural code references
// objects positionally, so every candidate is checked against the index and
// only matches become (inferred) edges; non-matching bare names are far too
// noisy to report as unresolved.
func extractBodyRefs(tokens []Token, idx *CatalogIndex, self identifier.QualifiedName, result *ExtractResult) {
	for i := 0; i < len(tokens); i++ {
		if !tokens[i].isIdent() {
			continue
		}
		// Skip name parts consumed by a previous match.
		if i > 0 && tokens[i-1].Type == TOKEN_DOT {
			continue
		}

		parts, next := readDottedName(tokens, i)
		if parts == nil {
			continue
		}

		if key, ok := idx.Resolve(parts, self); ok {
			if _, exists := result.References[key]; !exists {
				result.References[key] = EdgeInferred
			}
		} else if len(parts) >= 2 {
			// Qualified-looking references that miss the catalog are worth
			// surfacing.
			addUnresolved(result, strings.Join(parts, "."))
		}
		i = next - 1
	}
}

// recordRef resolves a parsed reference and records it as either an edge or
// an unresolved identifier.
func recordRef(parts []string, idx *CatalogIndex, self identifier.QualifiedName, kind EdgeKind, result *ExtractResult) {
	key, ok := idx.Resolve(parts, self)
	if ok {
		if prev, exists := result.References[key]; !exists || prev != EdgeDirect {
			result.References[key] = kind
		}
		return
	}
	// Keep the reference as written so the audit points at the text that
	// failed to resolve.
	addUnresolved(result, strings.Join(parts, "."))
}

func addUnresolved(result *ExtractResult, ref string) {
	for _, existing := range result.Unresolved {
		if existing == ref {
			return
		}
	}
	result.Unresolved = append(result.Unresolved, ref)
}

// readDottedName reads an ident(.ident)* sequence starting at position i.
// Returns the normalized parts (unquoted parts upper-cased) and the index of
// the first token past the name, or nil when tokens[i] is not a name start.
func readDottedName(tokens []Token, i int) ([]string, int) {
	if i >= len(tokens) || !tokens[i].isIdent() {
		return nil, i
	}

	var parts []string
	parts = append(parts, namePart(tokens[i]))
	j := i + 1
	for j+1 < len(tokens) && tokens[j].Type == TOKEN_DOT && tokens[j+1].isIdent() {
		parts = append(parts, namePart(tokens[j+1]))
		j += 2
	}
	if len(parts) > 3 {
		// Longer chains are column paths or semi-structured accessors, not
		// object names.
		return nil, j
	}
	return parts, j
}

// namePart folds an identifier token into canonical form.
func namePart(tok Token) string {
	if tok.Type == TOKEN_QUOTED_IDENT {
		return tok.Literal
	}
	return strings.ToUpper(tok.Literal)
}

// skipAlias advances past an optional "AS alias" or bare alias following a
// table reference.
func skipAlias(tokens []Token, i int) int {
	if i < len(tokens) && tokens[i].isKeyword("as") {
		i++
	}
	if i < len(tokens) && tokens[i].isIdent() {
		// A bare identifier directly after a table reference is its alias.
		i++
	}
	return i
}

// collectCTENames finds names bound by WITH clauses: an identifier preceded
// by WITH, RECURSIVE, or a comma, and followed by an optional column list
// and "AS (".
func collectCTENames(tokens []Token) map[string]struct{} {
	ctes := make(map[string]struct{})
	for i, tok := range tokens {
		if !tok.isIdent() {
			continue
		}
		if i == 0 {
			continue
		}
		prev := tokens[i-1]
		if !prev.isKeyword("with") && !prev.isKeyword("recursive") && prev.Type != TOKEN_COMMA {
			continue
		}

		j := i + 1
		// Optional column list.
		if j < len(tokens) && tokens[j].Type == TOKEN_LPAREN {
			depth := 1
			j++
			for j < len(tokens) && depth > 0 {
				switch tokens[j].Type {
				case TOKEN_LPAREN:
					depth++
				case TOKEN_RPAREN:
					depth--
				}
				j++
			}
		}
		if j+1 < len(tokens) && tokens[j].isKeyword("as") && tokens[j+1].Type == TOKEN_LPAREN {
			ctes[namePart(tok)] = struct{}{}
		}
	}
	return ctes
}
