// Command transitcat reads a single request document from stdin (or a
// --input file), dispatches it, and writes the pretty-printed reply
// array to stdout (or a --output file).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/antigravity/transitcat/internal/dispatch"
	"github.com/antigravity/transitcat/internal/jsonval"
)

func main() {
	inputPath := flag.String("input", "", "path to the request document (default: stdin)")
	outputPath := flag.String("output", "", "path to write the reply document (default: stdout)")
	flag.Parse()

	in := os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatalf("transitcat: open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	doc, err := jsonval.Parse(in)
	if err != nil {
		log.Fatalf("transitcat: parse request document: %v", err)
	}

	reply, err := dispatch.Run(doc)
	if err != nil {
		log.Fatalf("transitcat: dispatch request: %v", err)
	}

	out := os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			log.Fatalf("transitcat: create output: %v", err)
		}
		defer f.Close()
		out = f
	}

	if err := jsonval.Print(out, reply); err != nil {
		log.Fatalf("transitcat: print reply document: %v", err)
	}
	fmt.Fprintln(out)
}
