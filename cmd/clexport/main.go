package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	clreflect "github.com/Celtoys/clReflect-sub006"
	"github.com/Celtoys/clReflect-sub006/pkg/export"
	"github.com/Celtoys/clReflect-sub006/pkg/textdb"
)

func main() {
	out := flag.String("o", "", "binary database to write")
	dump := flag.String("text", "", "reload the written database and dump it to this file")
	start := flag.String("base", "", "virtual address to lay the image out at (default 0x10000000)")
	verbose := flag.Bool("v", false, "log export warnings")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -o out.cppbin [-text dump.txt] in.txt\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *out == "" || flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log.SetFlags(0)
	log.SetPrefix("clexport: ")

	var conf export.Config
	if *verbose {
		conf.Logger = log.New(os.Stderr, "export: ", 0)
	}
	if *start != "" {
		addr, err := strconv.ParseUint(*start, 0, 64)
		if err != nil {
			log.Fatalf("bad -base %q: %v", *start, err)
		}
		conf.StartAddress = addr
	}

	db, err := textdb.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	if err := export.WriteFile(*out, db, conf); err != nil {
		log.Fatalf("failed to export %s: %v", *out, err)
	}

	if *dump != "" {
		if err := dumpText(*out, *dump); err != nil {
			log.Fatal(err)
		}
	}
}

func dumpText(in, out string) error {
	db, err := clreflect.Open(in)
	if err != nil {
		return fmt.Errorf("failed to reload %s: %w", in, err)
	}
	defer db.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := db.WriteText(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
