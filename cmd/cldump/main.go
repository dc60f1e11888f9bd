package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	clreflect "github.com/Celtoys/clReflect-sub006"
	"github.com/Celtoys/clReflect-sub006/pkg/relocate"
)

func main() {
	relocs := flag.Bool("relocs", false, "print the pointer relocation tables")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-relocs] db.cppbin\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log.SetFlags(0)
	log.SetPrefix("cldump: ")

	db, err := clreflect.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	hdr := db.FileHeader
	fmt.Fprintf(w, "// %s\n", flag.Arg(0))
	fmt.Fprintf(w, "// signature=%s version=%d data=%#x base=%#x\n",
		hdr.Signature[:], hdr.Version, hdr.DataSize, db.BaseAddress())
	fmt.Fprintf(w, "// schemas=%d offsets=%d relocations=%d\n\n",
		hdr.NbPtrSchemas, hdr.NbPtrOffsets, hdr.NbPtrRelocations)

	if *relocs {
		printRelocations(w, db.Relocations())
	}
	if err := db.WriteText(w); err != nil {
		log.Fatal(err)
	}
}

func printRelocations(w *bufio.Writer, tbl *relocate.Table) {
	for i, s := range tbl.Schemas {
		fmt.Fprintf(w, "// schema %d: stride=%d ptrs=%v\n", i, s.Stride, tbl.Offsets[s.PtrsOffset:s.PtrsOffset+s.NbPtrs])
	}
	for _, r := range tbl.Relocations {
		fmt.Fprintf(w, "// reloc schema=%d offset=%#x objects=%d\n", r.SchemaHandle, r.Offset, r.NbObjects)
	}
	fmt.Fprintln(w)
}
