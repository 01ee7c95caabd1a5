package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/bankimport"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/config"
	"github.com/mind-engage/detprep/internal/logger"
	"github.com/mind-engage/detprep/internal/storage"
)

func main() {
	cfg := config.Load()

	var (
		module    string
		in        string
		sheet     string
		bankDir   string
		fixStarts string
		dryRun    bool
	)
	flag.StringVar(&module, "module", "", "module id, e.g. read-and-complete")
	flag.StringVar(&in, "in", "", "xlsx or csv file to import")
	flag.StringVar(&sheet, "sheet", "", "sheet name (default: first sheet)")
	flag.StringVar(&bankDir, "bank-dir", cfg.BankDir, "directory holding the bank files")
	flag.StringVar(&fixStarts, "fix-starts", "", "recompute visible letters for blanks of this difficulty in the existing bank")
	flag.BoolVar(&dryRun, "dry-run", false, "validate and report without writing")
	flag.Parse()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	m, ok := catalog.Lookup(module)
	if !ok {
		log.Fatal("unknown module", "module", module)
	}
	bs, err := storage.NewFSStore(bankDir)
	if err != nil {
		log.Fatal("bank dir", "dir", bankDir, "err", err)
	}

	items := mustItems(log, bs, m, in, sheet, fixStarts)
	if dryRun {
		log.Info("dry run", "module", m.ID, "items", len(items))
		return
	}
	path, err := bankimport.Write(bs, m, items)
	if err != nil {
		log.Fatal("write bank", "module", m.ID, "err", err)
	}
	log.Info("bank written", "module", m.ID, "items", len(items), "path", path)
}

func mustItems(log *logger.Logger, bs storage.BlobStore, m catalog.Module, in, sheet, fixStarts string) []bank.Item {
	if fixStarts != "" {
		items, err := bankimport.ReadBank(bs, m)
		if err != nil {
			log.Fatal("read bank", "module", m.ID, "err", err)
		}
		n := bankimport.FixStarts(items, fixStarts)
		log.Info("starts recomputed", "difficulty", fixStarts, "changed", n)
		return items
	}
	if in == "" {
		log.Fatal("-in or -fix-starts is required")
	}
	rows, err := bankimport.ReadRows(in, sheet)
	if err != nil {
		log.Fatal("read input", "file", in, "err", err)
	}
	items, errs := bankimport.Build(m, rows)
	for _, e := range errs {
		log.Warn("row skipped", "err", e)
	}
	log.Info("rows read", "rows", len(rows), "items", len(items), "skipped", len(errs))
	return items
}
