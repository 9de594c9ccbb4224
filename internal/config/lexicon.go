package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"surveysearch/internal/utils"
)

// LoadLexicon returns the built-in lexicon, merged with the YAML file at
// path when path is set.
//
//	regions:
//	  Seoul: [capital, "서울 도심"]
//	genders:
//	  F: [ladies]
//	negation_markers: ["never", "not", "없"]
func LoadLexicon(path string) (*utils.Lexicon, error) {
	lexicon := utils.DefaultLexicon()
	if path == "" {
		return lexicon, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}

	var overrides utils.LexiconOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	return lexicon.WithOverrides(overrides), nil
}
