// cmd/velm/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/sethvargo/go-envconfig"

	verr "velm/internal/errors"
	"velm/internal/interp"
	"velm/internal/markup"
	"velm/internal/renderer"
	"velm/internal/stream"
	"velm/internal/variant"
)

const version = "0.1.0"

// Config is drawn from the environment before flags apply.
type Config struct {
	App      string `env:"VELM_APP,default=velm"`
	Runner   string `env:"VELM_RUNNER,default=main"`
	Renderer string `env:"VELM_RENDERER"`
	Seed     int64  `env:"VELM_SEED"`
}

// Command aliases mapping
var commandAliases = map[string]string{
	"r": "run",
	"p": "parse",
	"s": "serialize",
	"v": "version",
}

func main() {
	ctx := context.Background()

	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "help", "--help", "-h":
		showUsage()
	case "version", "--version", "-v":
		fmt.Printf("velm %s\n", version)
	case "run":
		os.Exit(cmdRun(ctx, args[1:]))
	case "parse":
		os.Exit(cmdParse(args[1:]))
	case "serialize":
		os.Exit(cmdSerialize(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "velm: unknown command %q\n\n", cmd)
		showUsage()
		os.Exit(2)
	}
}

func showUsage() {
	fmt.Println(`velm - a template-and-data markup interpreter

Usage:
  velm run [--stats] [--renderer URL] <file>   Execute a document
  velm parse <file>                            Parse and dump the tree
  velm serialize <json-ish value>              Canonicalize a value
  velm version                                 Show version

Aliases: r=run, p=parse, s=serialize, v=version

Environment:
  VELM_APP, VELM_RUNNER   instance identity
  VELM_RENDERER           ws:// URL of a renderer
  VELM_SEED               pin the instance PRNG`)
}

func colorize(s string) string {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return "\033[31m" + s + "\033[0m"
	}
	return s
}

func fatal(msg string) int {
	fmt.Fprintln(os.Stderr, colorize("error: ")+msg)
	return 1
}

func cmdRun(ctx context.Context, args []string) int {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return fatal(err.Error())
	}

	showStats := false
	var file string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--stats":
			showStats = true
		case "--renderer":
			if i+1 >= len(args) {
				return fatal("--renderer needs a URL")
			}
			i++
			cfg.Renderer = args[i]
		default:
			file = args[i]
		}
	}
	if file == "" {
		return fatal("run needs a document file")
	}

	if code := interp.Init(cfg.App, cfg.Runner, &interp.ExtraInfo{Seed: cfg.Seed}); code != verr.OK {
		return fatal(verr.Message(code))
	}
	defer interp.Cleanup()

	doc := interp.LoadFromFile(ctx, file)
	if doc == nil {
		return fatal(fmt.Sprintf("cannot load %s: %s", file,
			verr.Message(verr.Last())))
	}

	var rdr *renderer.Conn
	if cfg.Renderer != "" {
		var err error
		rdr, err = renderer.Connect(ctx, cfg.Renderer, renderer.Options{})
		if err != nil {
			return fatal(err.Error())
		}
		defer rdr.Close()
	}

	ok := interp.Run(ctx, nil, func(d *interp.Document, event *variant.Variant) int {
		if rdr != nil {
			rdr.SendUpdate(doc.Output.HTML())
		}
		return 0
	})
	if !ok {
		return fatal(verr.Message(verr.Last()))
	}

	fmt.Println(doc.Output.HTML())
	if rdr != nil {
		rdr.SendUpdate(doc.Output.HTML())
	}

	if showStats {
		st := variant.UsageStat()
		fmt.Fprintf(os.Stderr, "variants alive: %s\n",
			humanize.Comma(int64(st.NrTotal)))
		for k := variant.KindNull; k < variant.Kind(len(st.NrValues)); k++ {
			if st.NrValues[k] != 0 {
				fmt.Fprintf(os.Stderr, "  %-12s %s\n", k.String(),
					humanize.Comma(int64(st.NrValues[k])))
			}
		}
	}
	return 0
}

func cmdParse(args []string) int {
	if len(args) != 1 {
		return fatal("parse needs a document file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fatal(err.Error())
	}
	doc, perr := markup.Parse(string(data))
	if perr != nil {
		return fatal(perr.Error())
	}
	dumpNode(doc, 0)
	return 0
}

func dumpNode(n *markup.Node, depth int) {
	pad := ""
	for i := 0; i < depth; i++ {
		pad += "  "
	}
	switch n.Type {
	case markup.DocumentNode:
		fmt.Printf("%s#document\n", pad)
	case markup.ElementNode:
		fmt.Printf("%s<%s>", pad, n.Tag)
		for _, a := range n.Attrs {
			fmt.Printf(" %s=%q", a.Name, a.Value)
		}
		fmt.Println()
	case markup.ContentNode:
		fmt.Printf("%s%q\n", pad, n.Text)
	case markup.CommentNode:
		fmt.Printf("%s<!-- %s -->\n", pad, n.Text)
	}
	for _, c := range n.Children {
		dumpNode(c, depth+1)
	}
}

func cmdSerialize(args []string) int {
	if len(args) != 1 {
		return fatal("serialize needs a value")
	}
	v, err := variant.Parse(args[0])
	if err != nil {
		return fatal(err.Error())
	}
	defer v.Unref()
	buf := stream.NewMemBuffer()
	if _, _, err := variant.Serialize(v, buf,
		variant.SerializePretty|variant.SerializeNoZero); err != nil {
		return fatal(err.Error())
	}
	fmt.Println(buf.String())
	return 0
}
