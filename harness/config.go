package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ezrec/capencrypt/machine"
)

// Config selects how test cases are built.
type Config struct {
	// PerformEncrypt enables encryption enforcement in the machine. When
	// clear, the same test bodies run, and assertions on encryption causes
	// hold as long as no other fault is pending.
	PerformEncrypt bool `yaml:"perform_encrypt"`

	// Verbose enables machine and harness logging.
	Verbose bool `yaml:"verbose"`

	// KeyTableSize is the number of key table slots.
	KeyTableSize int `yaml:"key_table_size"`
}

// DefaultConfig returns the configuration with encryption enforced.
func DefaultConfig() Config {
	return Config{
		PerformEncrypt: true,
		KeyTableSize:   machine.KEY_TABLE_SIZE,
	}
}

// LoadConfig reads a YAML configuration file.
// Fields missing from the file keep their DefaultConfig values.
func LoadConfig(path string) (cfg Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	cfg, err = ParseConfig(data)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
	}
	return
}

// ParseConfig parses a YAML configuration.
func ParseConfig(data []byte) (cfg Config, err error) {
	cfg = DefaultConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(&cfg)
	if errors.Is(err, io.EOF) {
		// Empty file
		err = nil
	}
	if err != nil {
		return
	}

	err = cfg.Validate()
	return
}

// Validate checks the configuration values.
func (cfg Config) Validate() (err error) {
	if cfg.KeyTableSize <= 0 {
		err = ErrKeyTableSize
	}
	return
}
