package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/intcode/pkg/intcode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "intcode-lsp"

// LspServer provides editor features for Intcode program files: parse
// diagnostics, hover decoding, operand navigation and opcode completion.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → analyzed content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("Intcode LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{","},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := analyze(params.TextDocument.Text)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := analyze(whole.Text)

			s.mu.Lock()
			s.docs[string(uri)] = doc
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(extractPrefix(doc.text, params.Position)), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return doc.hover(params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	rng, ok := doc.definition(params.Position)
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{URI: params.TextDocument.URI, Range: rng}}, nil
}

// --- Document analysis ---

// token is one integer of the program text.
type token struct {
	start, end int // byte offsets
	value      int64
}

// cell describes the role of one word in a linear sweep of the program.
type cell struct {
	start int  // address of the instruction containing the word
	param int  // 0 for the instruction word, else 1-based parameter index
	code  bool // false when the word does not decode as an instruction
}

// document is a parsed program. When the text does not parse, err is set
// and only diagnostics are available.
type document struct {
	text   string
	words  []int64
	tokens []token
	cells  []cell
	err    error
}

func analyze(text string) *document {
	doc := &document{text: text}
	doc.words, doc.err = intcode.Parse(text)
	if doc.err != nil {
		return doc
	}
	doc.tokens = scanTokens(text)
	doc.cells = sweep(doc.words)
	return doc
}

// scanTokens locates the integers of text, which must already parse.
func scanTokens(text string) []token {
	var tokens []token
	for i := 0; i < len(text); {
		c := text[i]
		if c == '-' || c == '+' || isDigit(c) {
			start := i
			i++
			for i < len(text) && isDigit(text[i]) {
				i++
			}
			v, _ := strconv.ParseInt(text[start:i], 10, 64)
			tokens = append(tokens, token{start: start, end: i, value: v})
			continue
		}
		i++
	}
	return tokens
}

// sweep assigns every word a role, decoding linearly from address 0.
func sweep(words []int64) []cell {
	cells := make([]cell, len(words))
	for pc := 0; pc < len(words); {
		op, err := intcode.DecodeWords(words[pc:])
		if err != nil {
			cells[pc] = cell{start: pc}
			pc++
			continue
		}
		for k := range op.Len() {
			cells[pc+k] = cell{start: pc, param: k, code: true}
		}
		pc += op.Len()
	}
	return cells
}

// tokenAt returns the index of the word under pos.
func (d *document) tokenAt(pos protocol.Position) (int, bool) {
	off := offsetAt(d.text, pos)
	for i, tok := range d.tokens {
		if off >= tok.start && off <= tok.end {
			return i, true
		}
		if tok.start > off {
			break
		}
	}
	return 0, false
}

func (d *document) tokenRange(i int) protocol.Range {
	tok := d.tokens[i]
	return protocol.Range{
		Start: positionAt(d.text, tok.start),
		End:   positionAt(d.text, tok.end),
	}
}

// hover describes the word under pos and the instruction it belongs to.
func (d *document) hover(pos protocol.Position) *protocol.Hover {
	i, ok := d.tokenAt(pos)
	if !ok {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**[%d]** = `%d`\n\n", i, d.words[i])

	c := d.cells[i]
	if !c.code {
		sb.WriteString("data (does not decode as an instruction)")
	} else {
		line, _ := intcode.DisassembleAt(d.words, c.start)
		fmt.Fprintf(&sb, "```\n%s\n```\n", line)
		op, _ := intcode.DecodeWords(d.words[c.start:])
		if c.param == 0 {
			info, _ := intcode.LookupOpcode(op.Op)
			fmt.Fprintf(&sb, "%s: %s", info.Name, opcodeDocs[op.Op])
		} else {
			arg := op.Args[c.param-1]
			fmt.Fprintf(&sb, "parameter %d of %s, %s mode", c.param, op.Op, arg.Mode)
		}
	}

	rng := d.tokenRange(i)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: sb.String(),
		},
		Range: &rng,
	}
}

// definition resolves the address a parameter refers to: the cell a
// position-mode operand reads or writes, or an immediate jump target.
func (d *document) definition(pos protocol.Position) (protocol.Range, bool) {
	i, ok := d.tokenAt(pos)
	if !ok {
		return protocol.Range{}, false
	}
	c := d.cells[i]
	if !c.code || c.param == 0 {
		return protocol.Range{}, false
	}
	op, err := intcode.DecodeWords(d.words[c.start:])
	if err != nil {
		return protocol.Range{}, false
	}

	arg := op.Args[c.param-1]
	isTarget := op.Op.IsJump() && c.param == 2
	if arg.Mode != intcode.ModePosition && !isTarget {
		return protocol.Range{}, false
	}
	if arg.Value < 0 || arg.Value >= int64(len(d.tokens)) {
		return protocol.Range{}, false
	}
	return d.tokenRange(int(arg.Value)), true
}

// diagnostics reports parse errors, and warns when execution would fault
// on the first instruction.
func (d *document) diagnostics() []protocol.Diagnostic {
	source := lspName
	if d.err != nil {
		severity := protocol.DiagnosticSeverityError
		rng := protocol.Range{}
		if se, ok := d.err.(*intcode.SyntaxError); ok {
			rng.Start = positionAt(d.text, se.Offset)
			end := se.Offset
			for end < len(d.text) && !isSeparator(d.text[end]) {
				end++
			}
			rng.End = positionAt(d.text, end)
		}
		return []protocol.Diagnostic{{
			Range:    rng,
			Severity: &severity,
			Source:   &source,
			Message:  d.err.Error(),
		}}
	}

	if _, err := intcode.DecodeWords(d.words); err != nil {
		severity := protocol.DiagnosticSeverityWarning
		return []protocol.Diagnostic{{
			Range:    d.tokenRange(0),
			Severity: &severity,
			Source:   &source,
			Message:  fmt.Sprintf("first instruction faults: %s", err),
		}}
	}
	return []protocol.Diagnostic{}
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: doc.diagnostics(),
	})
}

var opcodeDocs = map[intcode.Opcode]string{
	intcode.OpAdd:         "dst ← a + b",
	intcode.OpMul:         "dst ← a × b",
	intcode.OpInput:       "dst ← next input value",
	intcode.OpOutput:      "emit a",
	intcode.OpJumpIfTrue:  "jump to b if a ≠ 0",
	intcode.OpJumpIfFalse: "jump to b if a = 0",
	intcode.OpLessThan:    "dst ← 1 if a < b, else 0",
	intcode.OpEquals:      "dst ← 1 if a = b, else 0",
	intcode.OpHalt:        "stop the machine",
}

// complete offers every opcode whose number starts with prefix, in
// position mode and with immediate operands.
func complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	kind := protocol.CompletionItemKindKeyword
	for _, op := range intcode.AllOpcodes() {
		info, _ := intcode.LookupOpcode(op)
		variants := []int64{int64(op)}
		if info.Params > 0 {
			// All reads immediate; a destination stays in position mode.
			reads := info.Params
			if info.Writes {
				reads--
			}
			if reads > 0 {
				imm := int64(0)
				for k := range reads {
					imm += pow10(2 + k)
				}
				variants = append(variants, imm+int64(op))
			}
		}
		for _, v := range variants {
			label := strconv.FormatInt(v, 10)
			if !strings.HasPrefix(label, prefix) {
				continue
			}
			detail := info.Name
			if v != int64(op) {
				detail += " (immediate)"
			}
			doc := opcodeDocs[op]
			items = append(items, protocol.CompletionItem{
				Label:         label,
				Kind:          &kind,
				Detail:        &detail,
				Documentation: doc,
			})
		}
	}
	return items
}

func pow10(n int) int64 {
	p := int64(1)
	for range n {
		p *= 10
	}
	return p
}

// --- Text position helpers ---

// offsetAt converts an LSP position to a byte offset in text. Program text
// is ASCII, so LSP character counts equal byte counts.
func offsetAt(text string, pos protocol.Position) int {
	off := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return len(text)
		}
		off += nl + 1
	}
	lineEnd := strings.IndexByte(text[off:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text) - off
	}
	return off + min(int(pos.Character), lineEnd)
}

// positionAt converts a byte offset in text to an LSP position.
func positionAt(text string, off int) protocol.Position {
	off = min(off, len(text))
	line := strings.Count(text[:off], "\n")
	col := off - (strings.LastIndexByte(text[:off], '\n') + 1)
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// extractPrefix returns the integer fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	col := offsetAt(text, pos)
	start := col
	for start > 0 && isDigit(text[start-1]) {
		start--
	}
	return text[start:col]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSeparator(c byte) bool {
	return c == ',' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func boolPtr(b bool) *bool {
	return &b
}
