package types

import "errors"

// StoreConfig holds the parameters for attaching the local durable store.
type StoreConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// DBName is the database file inside DataDir. Defaults to landrecords.db.
	DBName string `json:"db_name,omitempty" yaml:"db_name,omitempty"`
}

// DefaultDBName is the local database file name.
const DefaultDBName = "landrecords.db"

// Config validation errors.
var (
	ErrDataDirEmpty  = errors.New("data directory must not be empty")
	ErrDBNameInvalid = errors.New("database name must be a plain file name")
)

// Validate checks that the StoreConfig is well-formed.
func (c StoreConfig) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	for _, r := range c.DBName {
		if r == '/' || r == '\\' {
			return ErrDBNameInvalid
		}
	}
	return nil
}

// FileName returns the database file name with the default applied.
func (c StoreConfig) FileName() string {
	if c.DBName == "" {
		return DefaultDBName
	}
	return c.DBName
}
