// This script is a small convenience tool for reading the session audit log
// from the configured server database.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dcrodman/railyard/internal/core"
	"github.com/dcrodman/railyard/internal/core/data"
)

var (
	configFlag = flag.String("config", "./", "Path to the directory containing the server config file")
	user       = flag.String("user", "", "List every login attempt made under a username.")
	session    = flag.String("session", "", "Show a single session by id.")
)

func main() {
	flag.Parse()

	if (*user == "") == (*session == "") {
		flag.Usage()
		os.Exit(1)
	}

	config, err := core.LoadConfig(*configFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if !config.Database.Enabled {
		fmt.Println("the session audit log is disabled in", *configFlag)
		os.Exit(1)
	}
	// Relative database paths resolve against the config directory, same as the server.
	if err := os.Chdir(*configFlag); err != nil {
		fmt.Println("error changing to config directory:", err)
		os.Exit(1)
	}

	db, err := data.Initialize(config.Database.Engine, config.DatabaseSource(), false)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// defer so os.Exit doesn't prevent our clean up.
	retCode := 0
	defer func() {
		_ = data.Shutdown(db)
		os.Exit(retCode)
	}()

	var records []data.SessionRecord
	if *user != "" {
		records, err = data.FindSessionsByUsername(db, *user)
	} else {
		var record *data.SessionRecord
		if record, err = data.FindSessionRecord(db, *session); record != nil {
			records = append(records, *record)
		}
	}
	if err != nil {
		fmt.Println("failed to query sessions:", err)
		retCode = 1
		return
	}
	if len(records) == 0 {
		fmt.Println("no sessions found")
		retCode = 1
		return
	}
	if err := printRecords(os.Stdout, records); err != nil {
		retCode = 1
	}
}
