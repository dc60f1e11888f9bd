package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/Celtoys/clReflect-sub006/pkg/cldb"
	"github.com/Celtoys/clReflect-sub006/pkg/merge"
	"github.com/Celtoys/clReflect-sub006/pkg/textdb"
	"github.com/Celtoys/clReflect-sub006/pkg/tustore"
)

var (
	out     = flag.String("o", "", "merged text database to write")
	store   = flag.String("store", "", "directory of the translation unit store; inputs are imported into it")
	watch   = flag.String("watch", "", "keep merging the text databases in this directory as they change")
	verbose = flag.Bool("v", false, "log imports and merge statistics")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -o out.txt [-store dir] [-watch dir] in.txt...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if *out == "" || (flag.NArg() == 0 && *watch == "") {
		flag.Usage()
		os.Exit(2)
	}

	log.SetFlags(0)
	log.SetPrefix("clmerge: ")
	if *watch != "" && sameDir(*out, *watch) {
		log.Fatalf("%s is inside the watched directory", *out)
	}
	mergeLog := log.New(os.Stderr, "merge: ", 0)

	if *store == "" && *watch == "" {
		db, st, err := mergeFiles(flag.Args(), mergeLog)
		if err != nil {
			log.Fatal(err)
		}
		write(db, st)
		return
	}

	dir := *store
	if dir == "" {
		tmp, err := os.MkdirTemp("", "clmerge")
		if err != nil {
			log.Fatal(err)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}
	storeLog := log.New(os.Stderr, "store: ", 0)
	if !*verbose {
		storeLog = nil
	}
	s, err := tustore.Open(dir, storeLog)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	inputs := flag.Args()
	if *watch != "" {
		existing, err := filepath.Glob(filepath.Join(*watch, "*"))
		if err != nil {
			log.Fatal(err)
		}
		for _, name := range existing {
			if textdb.IsTextDatabaseFile(name) {
				inputs = append(inputs, name)
			}
		}
	}
	for _, name := range inputs {
		if _, err := s.Import(name); err != nil {
			log.Fatal(err)
		}
	}
	mergeStore(s, mergeLog)
	if *watch == "" {
		return
	}

	w, err := s.Watch(*watch, func(path string) {
		if *verbose {
			log.Printf("%s changed", path)
		}
		mergeStore(s, mergeLog)
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("watching %s", *watch)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	if err := w.Close(); err != nil {
		log.Print(err)
	}
}

func mergeFiles(names []string, logger *log.Logger) (*cldb.Database, merge.Stats, error) {
	var total merge.Stats
	db := cldb.New()
	for _, name := range names {
		src, err := textdb.ReadFile(name)
		if err != nil {
			return nil, total, err
		}
		st := merge.Databases(db, src, logger)
		total.Added += st.Added
		total.Skipped += st.Skipped
		total.Conflicts += st.Conflicts
	}
	return db, total, nil
}

func mergeStore(s *tustore.Store, logger *log.Logger) {
	db, st, err := s.Merged(logger)
	if err != nil {
		log.Fatal(err)
	}
	write(db, st)
}

func write(db *cldb.Database, st merge.Stats) {
	if err := textdb.WriteFile(*out, db); err != nil {
		log.Fatal(err)
	}
	if *verbose {
		log.Printf("%s: %d added, %d duplicates, %d conflicts", *out, st.Added, st.Skipped, st.Conflicts)
	}
}

func sameDir(file, dir string) bool {
	a, err1 := filepath.Abs(filepath.Dir(file))
	b, err2 := filepath.Abs(dir)
	return err1 == nil && err2 == nil && a == b
}
