package chunking

import (
	"strings"
	"testing"

	types "github.com/casevault/discovery-backend/internal/domain"
)

func assembleText(t *testing.T, text string, cfg Config) []Chunk {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	elements := NewBoundaryAnalyzer().Analyze(text)
	return NewAssembler(cfg).Assemble(elements, text)
}

func TestAssembleOverlapAcrossChunks(t *testing.T) {
	sentence := "The parties stipulate that discovery shall proceed on the agreed schedule. "
	para := strings.TrimSpace(strings.Repeat(sentence, 13))
	text := para + "\n\n" + para + "\n\n" + para // ~3000 chars

	cfg := Config{TargetSize: 1200, MinSize: 100, MaxSize: 2000, Overlap: 200}
	chunks := assembleText(t, text, cfg)

	if len(chunks) < 2 || len(chunks) > 3 {
		t.Fatalf("chunk count: want 2-3 got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > cfg.MaxSize {
			t.Fatalf("chunk %d exceeds max size: %d", c.Index, len(c.Text))
		}
	}
	first, second := chunks[0].Text, chunks[1].Text
	if first[len(first)-cfg.Overlap:] != second[:cfg.Overlap] {
		t.Fatalf("second chunk does not start with first chunk's tail")
	}
}

func TestAssembleIndicesContiguous(t *testing.T) {
	var blocks []string
	for i := 0; i < 12; i++ {
		blocks = append(blocks, strings.TrimSpace(strings.Repeat("Counsel exchanged correspondence regarding the missing custodian files. ", 4)))
	}
	chunks := assembleText(t, strings.Join(blocks, "\n\n"), DefaultConfig())

	if len(chunks) == 0 {
		t.Fatalf("no chunks produced")
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("index gap: position %d has chunk_index %d", i, c.Index)
		}
		if c.EndChar <= c.StartChar {
			t.Fatalf("chunk %d has empty span: [%d,%d)", i, c.StartChar, c.EndChar)
		}
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i-1].EndChar > chunks[i].StartChar+DefaultConfig().Overlap+1 {
			t.Fatalf("chunks %d/%d overlap beyond window: end=%d next_start=%d",
				i-1, i, chunks[i-1].EndChar, chunks[i].StartChar)
		}
	}
}

func TestAssembleMergesRunt(t *testing.T) {
	big := strings.TrimSpace(strings.Repeat("The deponent confirmed the exhibit was authentic. ", 12))
	text := big + "\n\nNoted."

	cfg := Config{TargetSize: 600, MinSize: 100, MaxSize: 2000, Overlap: 50}
	chunks := assembleText(t, text, cfg)

	if len(chunks) != 1 {
		t.Fatalf("runt should merge into predecessor: got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "Noted.") {
		t.Fatalf("merged chunk missing runt text: %q", chunks[0].Text)
	}
}

func TestAssembleOnlyChunkMayBeShort(t *testing.T) {
	chunks := assembleText(t, "Short cover note.", DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("want single chunk, got %d", len(chunks))
	}
	if chunks[0].QualityScore >= 1.0 {
		t.Fatalf("short chunk should carry a length penalty, score=%f", chunks[0].QualityScore)
	}
}

func TestAssembleSplitsOversizedAtSentence(t *testing.T) {
	// One block, no internal blank lines, well past max size.
	text := strings.TrimSpace(strings.Repeat("The agreement was executed by both parties on the effective date. ", 40))

	cfg := Config{TargetSize: 1200, MinSize: 100, MaxSize: 2000, Overlap: 200}
	chunks := assembleText(t, text, cfg)

	if len(chunks) < 2 {
		t.Fatalf("oversized block should split: got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > cfg.MaxSize {
			t.Fatalf("chunk %d exceeds max after split: %d", c.Index, len(c.Text))
		}
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Fatalf("split should land on a sentence boundary, got tail %q", chunks[0].Text[len(chunks[0].Text)-12:])
	}
	if chunks[0].SemanticType != chunks[1].SemanticType {
		t.Fatalf("split segments should inherit one type: %s vs %s", chunks[0].SemanticType, chunks[1].SemanticType)
	}
}

func TestAssembleHardSplitWithoutSentences(t *testing.T) {
	text := strings.Repeat("x", 4500)
	cfg := Config{TargetSize: 1200, MinSize: 100, MaxSize: 2000, Overlap: 0}
	chunks := assembleText(t, text, cfg)

	if len(chunks) != 3 {
		t.Fatalf("want 3 hard-split chunks got %d", len(chunks))
	}
	if len(chunks[0].Text) != 2000 || len(chunks[1].Text) != 2000 || len(chunks[2].Text) != 500 {
		t.Fatalf("hard split sizes: got %d/%d/%d", len(chunks[0].Text), len(chunks[1].Text), len(chunks[2].Text))
	}
}

func TestClassifyChunkPrecedence(t *testing.T) {
	cases := []struct {
		text string
		want types.SemanticType
	}{
		{"See Bell Atl. Corp. v. Twombly, 550 U.S. 544 (2007). Plaintiff argues otherwise.", types.SemanticLegalCitation},
		{"It is hereby ORDERED that the motion to compel is granted.", types.SemanticProcedural},
		{"STATEMENT OF UNDISPUTED FACTS", types.SemanticHeader},
		{"Plaintiff delivered the goods and defendant refused payment.", types.SemanticFactStatement},
		{"Accordingly, the request is overbroad and thus unenforceable.", types.SemanticArgument},
		{"Wherefore, judgment should be entered for the moving party.", types.SemanticConclusion},
		{"The weather that morning was unremarkable.", types.SemanticParagraph},
	}
	for _, tc := range cases {
		if got := classifyChunk(tc.text); got != tc.want {
			t.Fatalf("classify %q: want=%s got=%s", tc.text, tc.want, got)
		}
	}
}

func TestQualityScoreBounds(t *testing.T) {
	long := strings.Repeat("A complete sentence about the production schedule. ", 10)
	if s := qualityScore(strings.TrimSpace(long), 100); s < 0.9 || s > 1.0 {
		t.Fatalf("clean prose score out of range: %f", s)
	}
	if s := qualityScore("tiny", 100); s >= 1.0 || s < 0.1 {
		t.Fatalf("runt score out of range: %f", s)
	}
	noisy := strings.Repeat("a\n", 200)
	if s := qualityScore(noisy, 100); s < 0.1 || s > 0.95 {
		t.Fatalf("line-break-heavy score out of range: %f", s)
	}
}
