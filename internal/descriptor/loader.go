package descriptor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// LoadList reads a stream list file: either a bare JSON array of
// descriptors or an object with a "streams" array. A malformed file or any
// invalid entry rejects the whole list; partial lists are never returned.
func LoadList(path string, logger zerolog.Logger) ([]Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stream list %s: %w", path, err)
	}

	var list []Descriptor
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapper struct {
			Streams []Descriptor `json:"streams"`
		}
		if wrapErr := json.Unmarshal(raw, &wrapper); wrapErr != nil || wrapper.Streams == nil {
			return nil, fmt.Errorf("parse stream list %s: %w", path, err)
		}
		list = wrapper.Streams
	}

	for i := range list {
		if err := list[i].Validate(logger); err != nil {
			return nil, fmt.Errorf("stream list %s entry %d: %w", path, i, err)
		}
	}

	logger.Info().Str("path", path).Int("streams", len(list)).Msg("loaded stream list")
	return list, nil
}
