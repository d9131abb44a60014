package chunking

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	types "github.com/casevault/discovery-backend/internal/domain"
)

// Boundary is a candidate structural element found in raw document text.
type Boundary struct {
	Text  string
	Start int
	End   int
	Type  types.SemanticType
}

var (
	blockSepRe = regexp.MustCompile(`\n[ \t]*\n+`)

	// Case citations ("Smith v. Jones, 550 U.S. 544"), reporters and
	// statute cites ("42 U.S.C. § 1983", "Fed. R. Civ. P. 26(b)").
	citationRe = regexp.MustCompile(
		`([A-Z][A-Za-z.'\-]+\s+v\.?\s+[A-Z][A-Za-z.'\-]+)|(\d+\s+U\.S\.C\.?\s*§+\s*\d+)|(\d+\s+[A-Z][a-z]*\.?\s?(2d|3d)?\s+\d+)|(Fed\.\s?R\.\s?(Civ|Crim|Evid|App)\.\s?P\.)`)

	listItemRe  = regexp.MustCompile(`^\s*(\d+[.)]\s+|[a-z][.)]\s+|\([a-z0-9]+\)\s+|[-*•]\s+)`)
	footnoteRe  = regexp.MustCompile(`^\s*(\[\d+\]|\d+/)\s+`)
	tableRowRe  = regexp.MustCompile(`\S(\t+|\s{3,}\|?|\s*\|\s*)\S`)
	headerNumRe = regexp.MustCompile(`^\s*((ARTICLE|SECTION|EXHIBIT|APPENDIX|SCHEDULE)\s+[IVXLC0-9]+|[IVXLC]+\.\s+\S|\d+(\.\d+)+\s+\S)`)
)

// typeRank orders detection so ties on an identical start offset resolve
// deterministically.
var typeRank = map[types.SemanticType]int{
	types.SemanticHeader:        0,
	types.SemanticLegalCitation: 1,
	types.SemanticListItem:      2,
	types.SemanticQuote:         3,
	types.SemanticFootnote:      4,
	types.SemanticTable:         5,
	types.SemanticParagraph:     6,
}

// BoundaryAnalyzer detects structural elements in raw document text. One
// instance is safe for concurrent use; all state is compiled patterns.
type BoundaryAnalyzer struct{}

func NewBoundaryAnalyzer() *BoundaryAnalyzer { return &BoundaryAnalyzer{} }

// Analyze splits the text on blank lines and classifies each block by its
// structural cues. Output is ordered by start offset and never contains two
// elements with the same start.
func (a *BoundaryAnalyzer) Analyze(text string) []Boundary {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []Boundary
	pos := 0
	seps := blockSepRe.FindAllStringIndex(text, -1)
	emit := func(start, end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		lead := strings.Index(raw, trimmed[:1])
		s := start + lead
		out = append(out, Boundary{
			Text:  trimmed,
			Start: s,
			End:   s + len(trimmed),
			Type:  classifyBlock(trimmed),
		})
	}
	for _, sep := range seps {
		emit(pos, sep[0])
		pos = sep[1]
	}
	emit(pos, len(text))

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return typeRank[out[i].Type] < typeRank[out[j].Type]
	})
	return out
}

func classifyBlock(block string) types.SemanticType {
	firstLine := block
	if i := strings.IndexByte(block, '\n'); i >= 0 {
		firstLine = block[:i]
	}
	firstLine = strings.TrimSpace(firstLine)

	switch {
	case looksLikeHeader(block, firstLine):
		return types.SemanticHeader
	case citationRe.MatchString(block):
		return types.SemanticLegalCitation
	case listItemRe.MatchString(firstLine):
		return types.SemanticListItem
	case strings.HasPrefix(firstLine, `"`) || strings.HasPrefix(firstLine, "“"):
		return types.SemanticQuote
	case footnoteRe.MatchString(firstLine):
		return types.SemanticFootnote
	case looksLikeTable(block):
		return types.SemanticTable
	default:
		return types.SemanticParagraph
	}
}

func looksLikeHeader(block, firstLine string) bool {
	if strings.Contains(block, "\n") || len(firstLine) == 0 || len(firstLine) > 120 {
		return false
	}
	if headerNumRe.MatchString(firstLine) {
		return true
	}
	// All-caps single lines read as headings in discovery productions.
	var letters, upper int
	for _, r := range firstLine {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 3 && upper == letters
}

func looksLikeTable(block string) bool {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return false
	}
	hits := 0
	for _, ln := range lines {
		if tableRowRe.MatchString(ln) {
			hits++
		}
	}
	return hits*2 >= len(lines)
}
