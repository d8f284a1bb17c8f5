package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nifkit/nifkit/nif"
)

func inspectFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	v, err := nif.Inspect(f)
	if err != nil {
		return err
	}
	log.Printf("%s: version %v", path, v)
	return nil
}

func main() {
	var inPath string
	var ext string
	flag.StringVar(&inPath, "i", "", "Path to scene file or folder")
	flag.StringVar(&ext, "ext", ".nif,.kf", "Comma-separated extensions scanned in folder mode")
	flag.Parse()

	if inPath == "" {
		log.Fatal("Provide path to file or folder. Use --help if you stuck.")
	}

	info, err := os.Stat(inPath)
	if err != nil {
		log.Fatal(err)
	}

	if !info.IsDir() {
		if err := inspectFile(inPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	exts := make(map[string]bool)
	for _, e := range strings.Split(ext, ",") {
		exts[strings.ToLower(strings.TrimSpace(e))] = true
	}

	var total, failed int
	err = filepath.Walk(inPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		total++
		if err := inspectFile(path); err != nil {
			failed++
			log.Printf("%s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Inspected %d files, %d failed", total, failed)
}
