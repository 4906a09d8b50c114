package main

// dataset_gen generates deterministic asset path datasets for standalone load
// testing of assetcore outside `go test` (see bench/). It emits
// newline-separated canonical paths ("<domain>//objects/<n>.payload") drawn
// from either a uniform or Zipf distribution over a fixed-size name pool, so a
// generated file can be replayed against a running manager.Manager to
// reproduce a specific access skew.
//
// Usage:
//
//	go run ./tools/dataset_gen -n 1000000 -domain demo -dist zipf -seed 42 -out paths.txt
//
// Flags:
//
//	-n       number of paths to generate (default 1e6)
//	-domain  domain prefix for generated paths (default "bench")
//	-dist    distribution: "uniform" or "zipf" (default uniform)
//	-zipfs   Zipf s parameter (>1) (default 1.2)
//	-zipfv   Zipf v parameter (>0) (default 1.0)
//	-pool    size of the name pool paths are drawn from (default 100000)
//	-seed    RNG seed (default current time)
//	-out     output file (default stdout)

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		n       = flag.Int("n", 1_000_000, "number of paths to generate")
		domain  = flag.String("domain", "bench", "domain prefix for generated paths")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>0)")
		pool    = flag.Uint64("pool", 100_000, "size of the name pool paths are drawn from")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	if *pool == 0 {
		fmt.Fprintln(os.Stderr, "pool must be > 0")
		os.Exit(1)
	}

	rnd := rand.New(rand.NewSource(*seedVal))

	var gen func() uint64
	switch *dist {
	case "uniform":
		gen = func() uint64 { return rnd.Uint64() % *pool }
	case "zipf":
		if *zipfS <= 1.0 || *zipfV <= 0 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >0")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, *pool-1)
		gen = z.Uint64
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := 0; i < *n; i++ {
		id := gen()
		fmt.Fprintf(w, "%s//objects/%d.payload\n", *domain, id)
	}
}
