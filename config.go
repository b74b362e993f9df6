package helix

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration for an Engine.
type Config struct {
	// DecisionsDir is the directory of markdown decision records to index.
	DecisionsDir string `json:"decisions_dir" yaml:"decisions_dir"`

	// DBPath is the full path to the SQLite index file. If empty,
	// defaults to resolveDBPath's storage-dir logic.
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName names the index file when DBPath is empty. Defaults to
	// "helix". The file will be <DBName>.db inside StorageDir.
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the index is created when DBPath is not
	// explicitly set. "home" (default) uses ~/.helix/, "local" uses the
	// current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// EmbeddingDim is the fixed vector dimension produced by the
	// configured Embedder. Must match whatever produced the vectors
	// already on disk; a mismatch on reopen returns ErrModelMismatch.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// EmbedderName identifies the embedder for the model fingerprint
	// check. Defaults to the Local embedder's name.
	EmbedderName string `json:"embedder_name" yaml:"embedder_name"`

	// MaxRelatedDepth is the hop count the related-decisions query uses
	// when the caller passes a non-positive depth. A positive depth from
	// the caller is used as given and is not capped by this value.
	MaxRelatedDepth int `json:"max_related_depth" yaml:"max_related_depth"`

	// LockTimeout bounds how long Search/Chain/Related/Sync wait to
	// acquire the index file lock before returning ErrLockHeld.
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout"`
}

// DefaultConfig returns a Config with sensible defaults: a 384-dimension
// local embedder, index stored at ~/.helix/helix.db, 1-hop related
// traversal, and a 5-second lock wait.
func DefaultConfig() Config {
	return Config{
		DBName:          "helix",
		StorageDir:      "home",
		EmbeddingDim:    384,
		MaxRelatedDepth: 1,
		LockTimeout:     5 * time.Second,
	}
}

// resolveDBPath computes the final index path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "helix"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		return filepath.Join(home, ".helix", name+".db")
	}
}
