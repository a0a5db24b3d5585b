package serde

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/colloquy/pkg/turns"
)

// Transcripts are stored as a YAML list of turns using the same field names as
// the JSON wire format (id, role, content, toolCallId, ...). The YAML document
// is bridged through JSON so the content union is decoded by a single codec.

// ToYAML marshals a transcript to YAML.
func ToYAML(ts []turns.Turn) ([]byte, error) {
	if ts == nil {
		ts = []turns.Turn{}
	}
	b, err := json.Marshal(ts)
	if err != nil {
		return nil, errors.Wrap(err, "marshal transcript")
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, errors.Wrap(err, "bridge transcript")
	}
	return yaml.Marshal(generic)
}

// FromYAML unmarshals a transcript from YAML.
func FromYAML(b []byte) ([]turns.Turn, error) {
	var generic any
	if err := yaml.Unmarshal(b, &generic); err != nil {
		return nil, errors.Wrap(err, "parse transcript yaml")
	}
	if generic == nil {
		return []turns.Turn{}, nil
	}
	bridged, err := json.Marshal(generic)
	if err != nil {
		return nil, errors.Wrap(err, "bridge transcript yaml")
	}
	var ts []turns.Turn
	if err := json.Unmarshal(bridged, &ts); err != nil {
		return nil, errors.Wrap(err, "decode transcript")
	}
	return ts, nil
}

// SaveTranscriptYAML writes a transcript to a YAML file.
func SaveTranscriptYAML(path string, ts []turns.Turn) error {
	data, err := ToYAML(ts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadTranscriptYAML reads a transcript from a YAML file.
func LoadTranscriptYAML(path string) ([]turns.Turn, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(b)
}
