package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the declarative part of the configuration: which word types exist,
// how they relate and which sibling services subscribe to each of them.
type File struct {
	// Sender names this service in distribution payloads.
	Sender string `yaml:"sender"`
	// Types lists every known word type in registry order.
	Types []string `yaml:"types"`
	// Groups switches propagation to explicit admin-curated groups.
	// Empty means suffix-based relations.
	Groups [][]string `yaml:"groups,omitempty"`
	// Subscribers maps a word type to the receivers of its pushes.
	Subscribers map[string][]string `yaml:"subscribers"`
	// Captcha names the receiver of captcha failure-data requests.
	Captcha string `yaml:"captcha,omitempty"`
}

// DefaultFile is used when no WORDHUB_CONFIG is given.
func DefaultFile() File {
	return File{
		Sender: "REGEX",
		Types: []string{
			"ad", "ad+", "ad-", "adx", "aff", "ban", "bio", "con", "del",
			"fil", "iml", "pho", "nm", "rm", "sho", "spc", "spe", "sti",
			"tgl", "tgp", "wb", "wd",
		},
		Subscribers: map[string][]string{
			"ad":  {"CLEAN", "LANG", "NOSPAM"},
			"ad+": {"NOSPAM"},
			"ad-": {"NOSPAM"},
			"adx": {"NOSPAM"},
			"aff": {"CLEAN", "NOSPAM"},
			"ban": {"NOSPAM", "USER"},
			"bio": {"NOSPAM"},
			"con": {"CLEAN", "NOSPAM"},
			"del": {"CLEAN", "LANG", "NOSPAM"},
			"fil": {"CLEAN", "NOSPAM"},
			"iml": {"CLEAN", "NOSPAM"},
			"pho": {"CLEAN", "NOSPAM"},
			"nm":  {"NOSPAM", "USER"},
			"rm":  {"CLEAN", "NOSPAM"},
			"sho": {"CLEAN", "NOSPAM"},
			"spc": {"CLEAN", "LANG", "NOSPAM"},
			"spe": {"CLEAN", "LANG", "NOSPAM"},
			"sti": {"CLEAN", "NOSPAM"},
			"tgl": {"CLEAN", "NOSPAM"},
			"tgp": {"CLEAN", "NOSPAM"},
			"wb":  {"CLEAN", "NOSPAM", "USER"},
			"wd":  {"NOSPAM"},
		},
		Captcha: "CAPTCHA",
	}
}

// LoadFile reads and validates a YAML configuration file. An empty path
// returns DefaultFile.
func LoadFile(path string) (File, error) {
	if path == "" {
		return DefaultFile(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseFile(raw)
}

// ParseFile decodes a YAML document. Unknown keys are rejected.
func ParseFile(raw []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode config file: %w", err)
	}
	if f.Sender == "" {
		f.Sender = "REGEX"
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks that every subscriber and group entry refers to a declared type.
func (f File) Validate() error {
	if len(f.Types) == 0 {
		return fmt.Errorf("config file declares no types")
	}
	known := make(map[string]struct{}, len(f.Types))
	for _, t := range f.Types {
		known[t] = struct{}{}
	}
	for t := range f.Subscribers {
		if _, ok := known[t]; !ok {
			return fmt.Errorf("subscribers reference unknown type %q", t)
		}
	}
	for _, group := range f.Groups {
		for _, t := range group {
			if _, ok := known[t]; !ok {
				return fmt.Errorf("group references unknown type %q", t)
			}
		}
	}
	return nil
}
