package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func pos(line, char int) protocol.Position {
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)}
}

// ---------------------------------------------------------------------------
// Text position helpers
// ---------------------------------------------------------------------------

func TestOffsetAt(t *testing.T) {
	text := "1,2\n30,40\n99"
	tests := []struct {
		pos  protocol.Position
		want int
	}{
		{pos(0, 0), 0},
		{pos(0, 3), 3},
		{pos(0, 50), 3},
		{pos(1, 1), 5},
		{pos(2, 2), 12},
		{pos(9, 0), 12},
	}
	for _, tt := range tests {
		if got := offsetAt(text, tt.pos); got != tt.want {
			t.Errorf("offsetAt(%v) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}

func TestPositionAt(t *testing.T) {
	text := "1,2\n30,40\n99"
	for off := 0; off <= len(text); off++ {
		p := positionAt(text, off)
		if back := offsetAt(text, p); back != off {
			t.Errorf("offsetAt(positionAt(%d)) = %d", off, back)
		}
	}
	if p := positionAt(text, 7); p.Line != 1 || p.Character != 3 {
		t.Errorf("positionAt(7) = %v, want 1:3", p)
	}
}

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		pos  protocol.Position
		want string
	}{
		{"1,0,0,3,10", pos(0, 10), "10"},
		{"1,0,0,3,", pos(0, 8), ""},
		{"", pos(0, 0), ""},
		{"99\n11", pos(1, 1), "1"},
	}
	for _, tt := range tests {
		if got := extractPrefix(tt.text, tt.pos); got != tt.want {
			t.Errorf("extractPrefix(%q, %v) = %q, want %q", tt.text, tt.pos, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

func TestAnalyzeTokens(t *testing.T) {
	doc := analyze("1002, 4,3,4,\n33\n")
	if doc.err != nil {
		t.Fatalf("analyze: %v", doc.err)
	}
	if len(doc.tokens) != 5 {
		t.Fatalf("tokens = %d, want 5", len(doc.tokens))
	}
	if tok := doc.tokens[1]; tok.start != 6 || tok.end != 7 || tok.value != 4 {
		t.Errorf("tokens[1] = %+v, want {6 7 4}", tok)
	}
	if tok := doc.tokens[4]; tok.value != 33 {
		t.Errorf("tokens[4] = %+v, want value 33", tok)
	}
}

func TestSweepRoles(t *testing.T) {
	// MUL [4] #3 -> [4], then 33 which is not an opcode.
	cells := sweep([]int64{1002, 4, 3, 4, 33})
	for i := 0; i < 4; i++ {
		if !cells[i].code || cells[i].start != 0 || cells[i].param != i {
			t.Errorf("cells[%d] = %+v", i, cells[i])
		}
	}
	if cells[4].code {
		t.Errorf("cells[4] = %+v, want data", cells[4])
	}
}

func TestHoverInstructionWord(t *testing.T) {
	doc := analyze("1002,4,3,4,33")
	h := doc.hover(pos(0, 2))
	if h == nil {
		t.Fatal("hover returned nil")
	}
	content := h.Contents.(protocol.MarkupContent)
	if content.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("kind = %q, want markdown", content.Kind)
	}
	for _, want := range []string{"**[0]** = `1002`", "MUL [4] #3 -> [4]", "MUL:"} {
		if !strings.Contains(content.Value, want) {
			t.Errorf("hover %q missing %q", content.Value, want)
		}
	}
	if h.Range == nil || h.Range.Start.Character != 0 || h.Range.End.Character != 4 {
		t.Errorf("hover range = %v, want 0..4", h.Range)
	}
}

func TestHoverParameter(t *testing.T) {
	doc := analyze("1002,4,3,4,33")
	h := doc.hover(pos(0, 7))
	if h == nil {
		t.Fatal("hover returned nil")
	}
	value := h.Contents.(protocol.MarkupContent).Value
	if !strings.Contains(value, "parameter 2 of MUL, immediate mode") {
		t.Errorf("hover = %q", value)
	}
}

func TestHoverData(t *testing.T) {
	doc := analyze("1002,4,3,4,33")
	h := doc.hover(pos(0, 12))
	if h == nil {
		t.Fatal("hover returned nil")
	}
	if value := h.Contents.(protocol.MarkupContent).Value; !strings.Contains(value, "data") {
		t.Errorf("hover = %q, want data description", value)
	}
}

func TestHoverOutsideToken(t *testing.T) {
	doc := analyze("1, 0, 0, 0, 99")
	if h := doc.hover(pos(0, 2)); h != nil {
		t.Errorf("hover between tokens = %v, want nil", h)
	}
}

func TestDefinitionPositionOperand(t *testing.T) {
	doc := analyze("1002,4,3,4,33")
	rng, ok := doc.definition(pos(0, 5))
	if !ok {
		t.Fatal("definition not found")
	}
	// [4] refers to the token "33".
	if rng.Start.Character != 11 || rng.End.Character != 13 {
		t.Errorf("definition range = %v, want 11..13", rng)
	}

	if _, ok := doc.definition(pos(0, 7)); ok {
		t.Error("immediate operand should have no definition")
	}
}

func TestDefinitionJumpTarget(t *testing.T) {
	// JT #1 #4 jumps to the HALT at address 4.
	doc := analyze("1105,1,4,0,99")
	rng, ok := doc.definition(pos(0, 7))
	if !ok {
		t.Fatal("definition not found")
	}
	if rng.Start.Character != 11 {
		t.Errorf("definition start = %d, want 11", rng.Start.Character)
	}
}

func TestDiagnosticsSyntaxError(t *testing.T) {
	doc := analyze("1,0,0\n3,x,99")
	diags := doc.diagnostics()
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(diags))
	}
	d := diags[0]
	if *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", *d.Severity)
	}
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 2 || d.Range.End.Character != 3 {
		t.Errorf("range = %v, want 1:2..1:3", d.Range)
	}
}

func TestDiagnosticsFaultingStart(t *testing.T) {
	diags := analyze("42,1,2").diagnostics()
	if len(diags) != 1 || *diags[0].Severity != protocol.DiagnosticSeverityWarning {
		t.Fatalf("diagnostics = %v, want one warning", diags)
	}
	if !strings.Contains(diags[0].Message, "invalid opcode") {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestDiagnosticsClean(t *testing.T) {
	if diags := analyze("1,9,10,3,2,3,11,0,99,30,40,50").diagnostics(); len(diags) != 0 {
		t.Errorf("diagnostics = %v, want none", diags)
	}
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func TestCompleteAll(t *testing.T) {
	items := complete("")
	labels := map[string]bool{}
	for _, item := range items {
		labels[item.Label] = true
	}
	for _, want := range []string{"1", "1101", "3", "4", "104", "1105", "99"} {
		if !labels[want] {
			t.Errorf("completion missing %q", want)
		}
	}
	if labels["103"] {
		t.Error("input has no immediate variant")
	}
}

func TestCompletePrefix(t *testing.T) {
	for _, item := range complete("11") {
		if !strings.HasPrefix(item.Label, "11") {
			t.Errorf("completion %q does not match prefix 11", item.Label)
		}
	}
	if len(complete("11")) == 0 {
		t.Error("no completions for prefix 11")
	}
}
