package config

// DefaultDatabasePath is the default sqlite file for the catalog.
const DefaultDatabasePath = "./locallibrary.db"
