package main

import (
	"flag"
	"time"
)

type options struct {
	target   string
	domain   string
	json     bool
	watch    bool
	interval time.Duration
	version  bool
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.target, "target", "http://localhost:6060", "base URL of the running assetcore service")
	flag.StringVar(&o.domain, "domain", "", "restrict the snapshot to one domain (default: all)")
	flag.BoolVar(&o.json, "json", false, "print the raw JSON snapshot instead of a table")
	flag.BoolVar(&o.watch, "watch", false, "poll the snapshot endpoint repeatedly")
	flag.DurationVar(&o.interval, "interval", 2*time.Second, "poll interval when -watch is set")
	flag.BoolVar(&o.version, "version", false, "print the CLI version and exit")
	flag.Parse()
	return o
}
