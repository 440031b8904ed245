package rbind

import (
	"fmt"
	"io"

	"github.com/mjl-/sconf"
)

// Config holds the process-wide defaults an embedding service loads
// once at startup, the way mox loads its static configuration through
// sconf (spec.md §9's process-wide policy default is in scope;
// query/connection configuration is not rbind's concern).
type Config struct {
	DefaultPolicy    string `sconf:"optional" sconf-doc:"Process-wide conversion policy sampled by Compile* calls: \"strict\" or \"automatic\". When empty, the current policy (strict unless changed) is left as it is."`
	DefaultBatchSize int    `sconf:"optional" sconf-doc:"Batch size assumed by callers that don't pass an explicit size to CompileBatchToParams. Informational only; rbind itself never assumes a default."`
}

// LoadConfig parses r as an sconf document into a Config.
func LoadConfig(r io.Reader) (Config, error) {
	var c Config
	if err := sconf.Parse(r, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return c, nil
}

// WriteConfig serializes c as an sconf document to w, annotated with the
// sconf-doc comments declared on Config's fields.
func WriteConfig(w io.Writer, c Config) error {
	if err := sconf.Write(w, c); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Apply installs c.DefaultPolicy as the process-wide conversion policy.
// An empty or unrecognized policy string leaves the current policy
// untouched.
func (c Config) Apply() {
	if c.DefaultPolicy == "" {
		return
	}
	if p, ok := parsePolicy(c.DefaultPolicy); ok {
		SetPolicy(p)
	}
}
