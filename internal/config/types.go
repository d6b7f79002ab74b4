package config

// ConfigFileName is the default name of a migration file
const ConfigFileName = "gwt-migration.toml"

// File is a migration described in TOML:
//
//	[migration]
//	source = "~/src/app"
//	target = "~/work/app"
//	bare_repo_name = "app.git"
//	dry_run = false
//	max_retries = 3
type File struct {
	Migration Migration `toml:"migration"`
}

// Migration holds the fields of the [migration] table. Zero values mean
// "not set" and leave the caller's defaults in place.
type Migration struct {
	Source       string `toml:"source,omitempty"`
	Target       string `toml:"target,omitempty"`
	BareRepoName string `toml:"bare_repo_name,omitempty"`
	DryRun       bool   `toml:"dry_run,omitempty"`
	MaxRetries   int    `toml:"max_retries,omitempty"`
}

// RepoSettings are per-repository defaults kept in the source
// repository's git-config ([gwt] section)
type RepoSettings struct {
	BareRepoName string
	Target       string
}
