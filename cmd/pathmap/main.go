// Command pathmap serves an interactive diagram of process stages with a
// detail panel per stage, over a web page and an MCP server.
package main

import (
	"fmt"
	"os"
)

const usageText = `Usage: pathmap <command> [flags]

Commands:
  serve      run the web panel, JSON API and MCP SSE endpoint (default)
  mcp        run the MCP server on stdio
  render     print the diagram (ascii, mermaid, svg, png, json)
  validate   check a dataset file
  import     store a dataset file as a new version
  init       write ~/.pathmap/settings.json and (re)start the server
  version    print the version

Run 'pathmap <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		runServe(nil)
		return
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		runServe(args)
	case "mcp":
		runMCP(args)
	case "render":
		runRender(args)
	case "validate":
		runValidate(args)
	case "import":
		runImport(args)
	case "init":
		runInit(args)
	case "version", "-v", "--version":
		printVersion()
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}
}
