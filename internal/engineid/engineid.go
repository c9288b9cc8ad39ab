// Package engineid gives every compiled row expression a process-unique
// identity for diagnostics, and memoizes identical expression text within
// one process so a filter re-applied across many batches (the same
// CIRCLE(...) cut re-run per HDU, say) is parsed once. Nothing here
// persists across process invocations: the memo cache is a plain map
// cleared at exit.
package engineid

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"rowexpr/internal/eval"
	"rowexpr/internal/host"
	"rowexpr/internal/lexer"
)

// CompiledExpr wraps an eval.CompiledExpr with a stable diagnostic
// identity. The identity is assigned once at Compile time and survives
// every subsequent Bind/Evaluate call.
type CompiledExpr struct {
	*eval.CompiledExpr
	ID uuid.UUID
}

var (
	cacheMu sync.Mutex
	cache   = map[[blake2b.Size256]byte]*CompiledExpr{}
)

// Compile parses source against catalog, reusing a cached tree from
// earlier in this process if the normalized source text was already
// compiled against an equal catalog. Cache hits return a clone (via
// arena.Clone, the same cheap index-copy EvaluateParallel uses) so two
// callers never share one arena's live Vec buffers.
func Compile(source string, catalog host.ColumnCatalog) (*CompiledExpr, error) {
	key := cacheKey(source, catalog)
	cacheMu.Lock()
	if hit, ok := cache[key]; ok {
		cacheMu.Unlock()
		return &CompiledExpr{
			CompiledExpr: &eval.CompiledExpr{Arena: hit.Arena.Clone(), Root: hit.Root, Source: hit.Source},
			ID:           uuid.New(),
		}, nil
	}
	cacheMu.Unlock()

	compiled, err := eval.Compile(source, catalog)
	if err != nil {
		return nil, err
	}
	wrapped := &CompiledExpr{CompiledExpr: compiled, ID: uuid.New()}

	// The cache keeps its own pristine clone: the caller is free to Bind
	// and Evaluate the tree it got back without those live buffers ever
	// becoming visible to a later cache hit.
	cacheMu.Lock()
	cache[key] = &CompiledExpr{
		CompiledExpr: &eval.CompiledExpr{Arena: compiled.Arena.Clone(), Root: compiled.Root, Source: compiled.Source},
		ID:           wrapped.ID,
	}
	cacheMu.Unlock()
	return wrapped, nil
}

// cacheKey hashes the normalized source text together with the
// catalog's column names and kinds, so two catalogs that disagree on
// what a name means never collide on the same cached tree.
func cacheKey(source string, catalog host.ColumnCatalog) [blake2b.Size256]byte {
	var sb strings.Builder
	sb.WriteString(normalize(source))
	sb.WriteByte(0)
	for i := 1; ; i++ {
		info, ok := catalog.ByIndex(i)
		if !ok {
			break
		}
		sb.WriteString(info.Name)
		sb.WriteByte('/')
		sb.WriteString(info.Type.String())
		sb.WriteByte(';')
	}
	return blake2b.Sum256([]byte(sb.String()))
}

// normalize renders source as a canonical token stream: keyword,
// identifier, and function-name casing and incidental whitespace no
// longer affect the cache key (column and function resolution are
// case-insensitive), but literal text (string/bit-string contents,
// numeric spelling) is preserved verbatim since it can change
// evaluation results.
func normalize(source string) string {
	tokens := lexer.NewScanner(source).ScanTokens()
	var sb strings.Builder
	for _, t := range tokens {
		if t.Type == lexer.TokenEOF {
			continue
		}
		lexeme := t.Lexeme
		switch t.Type {
		case lexer.TokenIdent, lexer.TokenFunc, lexer.TokenAnd, lexer.TokenOr, lexer.TokenBoolean, lexer.TokenRowRef:
			lexeme = strings.ToUpper(lexeme)
		}
		sb.WriteString(string(t.Type))
		sb.WriteByte(':')
		sb.WriteString(lexeme)
		sb.WriteByte(' ')
	}
	return sb.String()
}

// Reset clears the process-lifetime memo cache. Exposed for tests; a
// long-running server process has no ordinary reason to call it.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[[blake2b.Size256]byte]*CompiledExpr{}
}
