package main

import "time"

// Flag structs decouple cobra from the command logic for testing.

// APIFlags is the persistent daemon connection configuration.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

// ServeFlags configures the daemon.
type ServeFlags struct {
	Listen         string
	BasePath       string
	StorePath      string
	LogDir         string
	LogLevel       string
	HistoryDSN     string
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
}

// LogsFlags selects a process log view.
type LogsFlags struct {
	Follow bool
	Clear  bool
}
