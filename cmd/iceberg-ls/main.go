package main

import (
	"errors"
	"strings"
	"sync"

	"icebergvm/iceberg"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "iceberg-ls"

var (
	version string = "0.0.1"
	handler protocol.Handler

	documentsMutex sync.RWMutex
	documents      = make(map[string]string)

	// compilation only reads the opcode registry, so one VM serves every request
	vm = iceberg.NewVM()
)

func main() {
	commonlog.Configure(1, nil)

	handler = protocol.Handler{
		Initialize:             initialize,
		Initialized:            initialized,
		Shutdown:               shutdown,
		SetTrace:               setTrace,
		TextDocumentDidOpen:    textDocumentDidOpen,
		TextDocumentDidChange:  textDocumentDidChange,
		TextDocumentDidClose:   textDocumentDidClose,
		TextDocumentDidSave:    textDocumentDidSave,
		TextDocumentCompletion: textDocumentCompletion,
	}

	s := server.NewServer(&handler, lsName, false)
	s.RunStdio()
}

func initialize(context *glsp.Context, params *protocol.InitializeParams) (interface{}, error) {
	capabilities := handler.CreateServerCapabilities()
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &[]bool{true}[0],
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &[]bool{false}[0]},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func shutdown(context *glsp.Context) error {
	return nil
}

func setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func textDocumentDidOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	documents[params.TextDocument.URI] = params.TextDocument.Text
	go publishDiagnostics(context, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func textDocumentDidChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}

	content := params.ContentChanges[0].(protocol.TextDocumentContentChangeEventWhole).Text

	documentsMutex.Lock()
	documents[params.TextDocument.URI] = content
	documentsMutex.Unlock()

	go publishDiagnostics(context, params.TextDocument.URI, content)
	return nil
}

func textDocumentDidClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	delete(documents, params.TextDocument.URI)
	return nil
}

func textDocumentDidSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	return nil
}

func textDocumentCompletion(context *glsp.Context, params *protocol.CompletionParams) (interface{}, error) {
	documentsMutex.RLock()
	content, ok := documents[params.TextDocument.URI]
	documentsMutex.RUnlock()

	items := []protocol.CompletionItem{}
	seen := make(map[string]bool)

	kindFunc := protocol.CompletionItemKindFunction
	detailFunc := "instruction"
	for _, name := range vm.Opcodes() {
		if !seen[name] {
			items = append(items, protocol.CompletionItem{
				Label:  name,
				Kind:   &kindFunc,
				Detail: &detailFunc,
			})
			seen[name] = true
		}
	}

	kindKeyword := protocol.CompletionItemKindKeyword
	detailKeyword := "literal"
	for _, keyword := range []string{"true", "false"} {
		if !seen[keyword] {
			items = append(items, protocol.CompletionItem{
				Label:  keyword,
				Kind:   &kindKeyword,
				Detail: &detailKeyword,
			})
			seen[keyword] = true
		}
	}

	if ok {
		kindRef := protocol.CompletionItemKindReference
		detailRef := "label"
		for _, line := range strings.Split(content, "\n") {
			token := strings.TrimSpace(line)
			if strings.HasPrefix(token, iceberg.LabelSigil) && !strings.Contains(token, " ") && !seen[token] {
				items = append(items, protocol.CompletionItem{
					Label:  token,
					Kind:   &kindRef,
					Detail: &detailRef,
				})
				seen[token] = true
			}
		}
	}

	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

// publishDiagnostics compiles the document and reports the first bad line.
// Compilation aborts on the first error, so there is at most one diagnostic
// per publish.
func publishDiagnostics(context *glsp.Context, uri string, content string) {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError

	if _, err := vm.Compile(content); err != nil {
		var icerr *iceberg.Error
		if errors.As(err, &icerr) {
			source := lsName
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range:    lineRange(content, icerr.Line),
				Severity: &severity,
				Source:   &source,
				Message:  err.Error(),
			})
		}
	}

	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// lineRange spans the whole 1-based source line.
func lineRange(content string, line int) protocol.Range {
	if line < 1 {
		line = 1
	}
	length := 0
	lines := strings.Split(content, "\n")
	if line <= len(lines) {
		length = len(lines[line-1])
	}
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line - 1), Character: 0},
		End:   protocol.Position{Line: protocol.UInteger(line - 1), Character: protocol.UInteger(length)},
	}
}
