package chunking

import (
	"testing"

	types "github.com/casevault/discovery-backend/internal/domain"
)

func TestAnalyzeClassifiesBlocks(t *testing.T) {
	text := "MOTION TO COMPEL DISCOVERY\n\n" +
		"Plaintiff moves to compel production of documents responsive to Request 12. " +
		"The parties met and conferred on March 3 without resolution.\n\n" +
		"1. All communications between the parties.\n2. All draft agreements.\n\n" +
		"See Ashcroft v. Iqbal, 556 U.S. 662 (2009).\n\n" +
		"\"We never received those documents,\" counsel stated."

	got := NewBoundaryAnalyzer().Analyze(text)
	if len(got) != 5 {
		t.Fatalf("elements: want=5 got=%d (%+v)", len(got), got)
	}

	wantTypes := []types.SemanticType{
		types.SemanticHeader,
		types.SemanticParagraph,
		types.SemanticListItem,
		types.SemanticLegalCitation,
		types.SemanticQuote,
	}
	for i, b := range got {
		if b.Type != wantTypes[i] {
			t.Fatalf("element %d type: want=%s got=%s (text %q)", i, wantTypes[i], b.Type, b.Text)
		}
	}
}

func TestAnalyzeOffsetsOrderedAndDistinct(t *testing.T) {
	text := "INTRODUCTION\n\nFirst paragraph of the brief.\n\nSecond paragraph of the brief."
	got := NewBoundaryAnalyzer().Analyze(text)
	if len(got) < 2 {
		t.Fatalf("expected multiple elements, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Start <= got[i-1].Start {
			t.Fatalf("starts not strictly increasing at %d: %d then %d", i, got[i-1].Start, got[i].Start)
		}
	}
	for _, b := range got {
		if text[b.Start:b.End] != b.Text {
			t.Fatalf("offsets do not address element text: %q vs %q", text[b.Start:b.End], b.Text)
		}
	}
}

func TestAnalyzeEmptyText(t *testing.T) {
	if got := NewBoundaryAnalyzer().Analyze("   \n\n  "); got != nil {
		t.Fatalf("blank text: want=nil got=%+v", got)
	}
}

func TestAnalyzeTableBlock(t *testing.T) {
	text := "Bates Range        Custodian\nDEF000001-000050   J. Harmon\nDEF000051-000110   K. Ellis"
	got := NewBoundaryAnalyzer().Analyze(text)
	if len(got) != 1 || got[0].Type != types.SemanticTable {
		t.Fatalf("table block: got %+v", got)
	}
}
