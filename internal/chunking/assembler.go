package chunking

import (
	"regexp"
	"strings"
	"unicode"

	types "github.com/casevault/discovery-backend/internal/domain"
)

// Chunk is an assembled span ready to persist as ChunkMetadata. Offsets are
// byte positions into the source text; EndChar can undercount the true span
// because block separators collapse to single newlines during assembly.
type Chunk struct {
	Index        int
	Text         string
	StartChar    int
	EndChar      int
	SemanticType types.SemanticType
	QualityScore float64

	typeLocked bool
}

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]\s`)
	sentenceEndRe   = regexp.MustCompile(`[.!?](\s+|$)`)

	proceduralRe = regexp.MustCompile(`(?i)(it is (hereby )?ordered|pursuant to|motion (to|for)|the court (finds|orders|grants|denies)|notice of|certificate of service)`)

	factTerms       = []string{"plaintiff", "defendant", "witness", "testified", "deposition"}
	argumentTerms   = []string{"therefore", "accordingly", "thus", "it follows", "consequently"}
	conclusionTerms = []string{"whereas", "wherefore", "in conclusion", "for the foregoing reasons"}
)

// Assembler merges boundary elements into size-bounded chunks and scores
// them. Stateless beyond its config.
type Assembler struct {
	cfg Config
}

func NewAssembler(cfg Config) *Assembler { return &Assembler{cfg: cfg} }

// Assemble walks the boundary elements in order, sealing a chunk whenever
// the next element would push the buffer past the target size. Each new
// buffer is pre-seeded with the tail of the sealed one so context survives
// the cut. Post-passes merge runts into their predecessor and split
// oversized chunks at sentence boundaries. Returned indices are 0-based and
// contiguous.
func (a *Assembler) Assemble(elements []Boundary, fullText string) []Chunk {
	if len(elements) == 0 {
		trimmed := strings.TrimSpace(fullText)
		if trimmed == "" {
			return nil
		}
		start := strings.Index(fullText, trimmed[:1])
		elements = []Boundary{{Text: trimmed, Start: start, End: start + len(trimmed), Type: types.SemanticParagraph}}
	}

	chunks := a.accumulate(elements)
	chunks = a.mergeShort(chunks)
	chunks = a.splitLong(chunks)

	for i := range chunks {
		chunks[i].Index = i
		if !chunks[i].typeLocked {
			chunks[i].SemanticType = classifyChunk(chunks[i].Text)
		}
		chunks[i].QualityScore = qualityScore(chunks[i].Text, a.cfg.MinSize)
	}
	return chunks
}

func (a *Assembler) accumulate(elements []Boundary) []Chunk {
	var out []Chunk
	var buf string
	bufStart := 0

	for _, el := range elements {
		if el.Text == "" {
			continue
		}
		if buf == "" {
			buf = el.Text
			bufStart = el.Start
			continue
		}
		if len(buf)+1+len(el.Text) > a.cfg.TargetSize {
			out = append(out, Chunk{Text: buf, StartChar: bufStart, EndChar: bufStart + len(buf)})
			tail := overlapTail(buf, a.cfg.Overlap)
			bufStart = el.Start - len(tail) - 1
			if bufStart < 0 {
				bufStart = 0
			}
			buf = tail + "\n" + el.Text
			continue
		}
		buf += "\n" + el.Text
	}
	if strings.TrimSpace(buf) != "" {
		out = append(out, Chunk{Text: buf, StartChar: bufStart, EndChar: bufStart + len(buf)})
	}
	return out
}

func (a *Assembler) mergeShort(chunks []Chunk) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if len(out) > 0 && len(c.Text) < a.cfg.MinSize {
			prev := &out[len(out)-1]
			if len(prev.Text)+1+len(c.Text) <= a.cfg.MaxSize {
				prev.Text += "\n" + c.Text
				prev.EndChar = c.EndChar
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func (a *Assembler) splitLong(chunks []Chunk) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if len(c.Text) <= a.cfg.MaxSize {
			out = append(out, c)
			continue
		}

		parentType := classifyChunk(c.Text)
		text, start := c.Text, c.StartChar
		for len(text) > a.cfg.MaxSize {
			cut := lastSentenceCut(text[:a.cfg.MaxSize])
			if cut <= 0 {
				cut = a.cfg.MaxSize
			}
			seg := text[:cut]
			out = append(out, Chunk{
				Text:         seg,
				StartChar:    start,
				EndChar:      start + len(seg),
				SemanticType: parentType,
				typeLocked:   true,
			})
			rest := text[cut:]
			trimmed := strings.TrimLeft(rest, " \t\n")
			start += len(seg) + (len(rest) - len(trimmed))
			text = trimmed
		}
		if text != "" {
			out = append(out, Chunk{
				Text:         text,
				StartChar:    start,
				EndChar:      start + len(text),
				SemanticType: parentType,
				typeLocked:   true,
			})
		}
	}
	return out
}

// lastSentenceCut returns the position just past the last sentence-ending
// punctuation in s, or -1 when s has none.
func lastSentenceCut(s string) int {
	locs := sentenceSplitRe.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][0] + 1
}

func overlapTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func classifyChunk(text string) types.SemanticType {
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}
	firstLine = strings.TrimSpace(firstLine)

	switch {
	case citationRe.MatchString(text):
		return types.SemanticLegalCitation
	case proceduralRe.MatchString(text):
		return types.SemanticProcedural
	case looksLikeHeader(text, firstLine):
		return types.SemanticHeader
	case looksLikeTable(text):
		return types.SemanticTable
	case listItemRe.MatchString(firstLine):
		return types.SemanticListItem
	case strings.HasPrefix(firstLine, `"`) || strings.HasPrefix(firstLine, "“"):
		return types.SemanticQuote
	case footnoteRe.MatchString(firstLine):
		return types.SemanticFootnote
	}

	lower := strings.ToLower(text)
	fact := countTerms(lower, factTerms)
	arg := countTerms(lower, argumentTerms)
	concl := countTerms(lower, conclusionTerms)
	switch {
	case fact > 0 && fact >= arg && fact >= concl:
		return types.SemanticFactStatement
	case arg > 0 && arg >= concl:
		return types.SemanticArgument
	case concl > 0:
		return types.SemanticConclusion
	}
	return types.SemanticParagraph
}

func countTerms(lower string, terms []string) int {
	n := 0
	for _, t := range terms {
		n += strings.Count(lower, t)
	}
	return n
}

func qualityScore(text string, minSize int) float64 {
	if len(text) == 0 {
		return 0.1
	}
	score := 1.0
	if len(text) < minSize {
		score *= 0.7
	}
	if printableDensity(text) < 0.8 {
		score *= 0.8
	}
	if strings.Count(text, "\n")*50 > len(text) {
		score *= 0.9
	}

	boost := 1.0 + 0.05*float64(len(sentenceEndRe.FindAllStringIndex(text, -1)))
	if boost > 1.2 {
		boost = 1.2
	}
	score *= boost

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.1 {
		score = 0.1
	}
	return score
}

func printableDensity(text string) float64 {
	var printable, total int
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}
