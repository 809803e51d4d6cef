package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"shikiwatch/internal/fileutil"
)

// SaveTokens rewrites the [shikimori] token pair in the config file at path,
// leaving every other key untouched. The file is replaced atomically.
func SaveTokens(path, accessToken, refreshToken string) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("read config: %w", err)
	}

	section, _ := doc["shikimori"].(map[string]any)
	if section == nil {
		section = map[string]any{}
	}
	section["access_token"] = accessToken
	if refreshToken != "" {
		section["refresh_token"] = refreshToken
	}
	doc["shikimori"] = section

	encoded, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fileutil.WriteFileAtomic(afero.NewOsFs(), path, encoded, 0o600); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}
