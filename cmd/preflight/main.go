// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	sourcesPath := flag.String("sources", "", "sources file to check for readability")
	destsPath := flag.String("dests", "", "destinations file to check for readability")
	outputPath := flag.String("output", "", "result file to check for append access")
	ledgerPath := flag.String("ledger", "", "ledger file to check for append access")
	flag.Parse()
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	user := strings.TrimSpace(os.Getenv("SSH_USER"))
	keyFile := strings.TrimSpace(os.Getenv("SSH_KEY_FILE"))
	password := os.Getenv("SSH_PASSWORD")
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	statusAddr := strings.TrimSpace(os.Getenv("STATUS_ADDR"))

	if user == "" {
		fail("SSH_USER is empty (every probe session logs in as this account).")
	}
	ok("SSH_USER=" + user)

	if keyFile == "" && password == "" {
		fail("neither SSH_KEY_FILE nor SSH_PASSWORD set; no way to authenticate.")
	}
	if keyFile != "" {
		if _, err := os.ReadFile(keyFile); err != nil {
			fail("SSH_KEY_FILE not readable: " + err.Error())
		}
		ok("SSH_KEY_FILE readable")
		if password != "" {
			warn("both key and password set; the key wins.")
		}
	} else {
		warn("password auth only — prefer SSH_KEY_FILE.")
	}

	if v := os.Getenv("CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err != nil || n < 1 {
			fail("CONCURRENCY must be a positive integer, got " + v)
		}
		ok("CONCURRENCY=" + v)
	}

	if db == "" {
		warn("DATABASE_URL empty — ledger will live in the local file.")
	} else {
		ok("DATABASE_URL present")
	}

	if statusAddr == "" {
		warn("STATUS_ADDR empty — progress API disabled.")
	} else {
		ok("STATUS_ADDR=" + statusAddr)
	}

	for name, path := range map[string]string{"sources": *sourcesPath, "dests": *destsPath} {
		if path == "" {
			warn("-" + name + " not given; skipping readability check.")
			continue
		}
		if _, err := os.ReadFile(path); err != nil {
			fail(name + " file not readable: " + err.Error())
		}
		ok(name + " file readable")
	}

	for name, path := range map[string]string{"output": *outputPath, "ledger": *ledgerPath} {
		if path == "" {
			continue
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fail(name + " file not appendable: " + err.Error())
		}
		f.Close()
		ok(name + " file appendable")
	}

	ok("preflight passed")
}
