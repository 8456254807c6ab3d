package config

import "time"

// Base application details
const AppName = "spanedit"
const DefaultConfigFileName = "config.toml"
const DefaultLogFileName = "spanedit.log"

// UI Layout
const StatusBarHeight = 1
const MessageTimeout = 4 * time.Second

// Editing
const DefaultHistoryCapacity = 15
const DefaultFuzzyThreshold = 0.8

// Generation
const DefaultGenerationTimeout = 60 * time.Second
const DefaultMaxTokens = 300
const DefaultTemperature = 0.7

// Store kinds
const (
	StoreAuto   = ""
	StoreJSONL  = "jsonl"
	StoreSQLite = "sqlite"
)

// File watching
const DefaultWatchSettle = 200 * time.Millisecond
