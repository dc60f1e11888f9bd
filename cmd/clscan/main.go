package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Celtoys/clReflect-sub006/pkg/dwarfscan"
	"github.com/Celtoys/clReflect-sub006/pkg/textdb"
)

func main() {
	out := flag.String("o", "", "text database to write")
	verbose := flag.Bool("v", false, "log warnings")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -o out.txt binary\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *out == "" || flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log.SetFlags(0)
	log.SetPrefix("clscan: ")

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "dwarf: ", 0)
	}

	data, err := dwarfscan.OpenFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	s := dwarfscan.NewScanner(logger)
	if err := s.Scan(data); err != nil {
		log.Fatalf("failed to scan %s: %v", flag.Arg(0), err)
	}
	db := s.Database()
	if err := textdb.WriteFile(*out, db); err != nil {
		log.Fatal(err)
	}
	if *verbose {
		log.Printf("%d primitives written to %s", db.Len(), *out)
	}
}
