package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/forgescript/forgescript-lsp/internal/document"
	"github.com/forgescript/forgescript-lsp/internal/logging"
	"github.com/forgescript/forgescript-lsp/internal/lsp"
	"github.com/forgescript/forgescript-lsp/internal/metadata"
)

const version = "0.1.0"

var (
	tcpMode  bool
	tcpPort  int
	logLevel string
	logFile  string
	cacheDir string
)

func init() {
	flag.BoolVar(&tcpMode, "tcp", false, "Run server in TCP mode (for debugging)")
	flag.IntVar(&tcpPort, "port", 8765, "TCP port to listen on (used with -tcp)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	flag.StringVar(&cacheDir, "cache-dir", "./.cache", "Metadata fetch cache directory")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, "forgescript-lsp version %s\n\n", version)
	fmt.Fprintf(os.Stderr, "Usage: forgescript-lsp [options]\n\n")
	fmt.Fprintf(os.Stderr, "Language Server Protocol implementation for ForgeScript\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	if flag.NArg() > 0 && flag.Arg(0) == "version" {
		fmt.Printf("forgescript-lsp version %s\n", version)
		os.Exit(0)
	}

	fmt.Fprintf(os.Stderr, "forgescript-lsp version %s starting...\n", version)
	fmt.Fprintf(os.Stderr, "Transport: ")
	if tcpMode {
		fmt.Fprintf(os.Stderr, "TCP (port %d)\n", tcpPort)
	} else {
		fmt.Fprintf(os.Stderr, "STDIO\n")
	}
	fmt.Fprintf(os.Stderr, "Log level: %s\n", logLevel)

	setupLogging()
	logging.SetLevel(logLevel)

	fetcher, err := metadata.NewFetcher(cacheDir)
	if err != nil {
		log.Fatalf("failed to set up metadata cache: %v", err)
	}
	manager := metadata.NewManager(fetcher)
	svc := document.New(manager)
	lsp.SetService(svc)

	handler := protocol.Handler{
		Initialize:                     lsp.Initialize,
		Initialized:                    lsp.Initialized,
		Shutdown:                       lsp.Shutdown,
		SetTrace:                       func(context *glsp.Context, params *protocol.SetTraceParams) error { return nil },
		TextDocumentDidOpen:            lsp.DidOpen,
		TextDocumentDidClose:           lsp.DidClose,
		TextDocumentDidChange:          lsp.DidChange,
		TextDocumentHover:              lsp.Hover,
		TextDocumentCompletion:         lsp.Completion,
		TextDocumentSignatureHelp:      lsp.SignatureHelp,
		TextDocumentSemanticTokensFull: lsp.SemanticTokensFull,
		WorkspaceDidChangeWatchedFiles: lsp.DidChangeWatchedFiles,
	}

	glspServer := glspserver.NewServer(&handler, "forgescript-lsp", false)

	if tcpMode {
		fmt.Fprintf(os.Stderr, "Starting TCP server on port %d...\n", tcpPort)
		if err := glspServer.RunTCP(fmt.Sprintf("127.0.0.1:%d", tcpPort)); err != nil {
			log.Fatalf("TCP server error: %v", err)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Starting STDIO server...\n")
		if err := glspServer.RunStdio(); err != nil {
			log.Fatalf("STDIO server error: %v", err)
		}
	}
}

// setupLogging routes the structured logger at a stderr sink (or a file,
// if requested) until a client connection attaches it to window/logMessage.
func setupLogging() {
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		logging.SetOutput(f)
		return
	}
	logging.SetOutput(os.Stderr)
}
