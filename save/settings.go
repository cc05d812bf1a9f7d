// Package save loads and persists the bot configuration.
package save

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	configDirName    = "mechbot"
	settingsFileName = "settings.yaml"
)

type Settings struct {
	CommandPrefix string         `yaml:"command_prefix"`
	KnownBots     []string       `yaml:"known_bots"`
	Repost        RepostSettings `yaml:"repost"`
}

type RepostSettings struct {
	ExcludeDomains []string `yaml:"exclude_domains"`
}

func BuildDefaultSettings() Settings {
	return Settings{
		CommandPrefix: "$",
		KnownBots: []string{
			"nightbot",
			"streamelements",
			"fossabot",
			"moobot",
		},
		Repost: RepostSettings{
			ExcludeDomains: []string{"twitch.tv"},
		},
	}
}

func (s Settings) validate() error {
	if s.CommandPrefix == "" || strings.ContainsAny(s.CommandPrefix, " \t") {
		return fmt.Errorf("command_prefix %q must be non-empty and free of whitespace", s.CommandPrefix)
	}

	if slices.Contains(s.KnownBots, "") {
		return errors.New("known_bots entry can't be empty string")
	}

	if slices.Contains(s.Repost.ExcludeDomains, "") {
		return errors.New("repost.exclude_domains entry can't be empty string")
	}

	return nil
}

// NormalizedKnownBots returns the known bot logins lowercased for matching
// against chat user names.
func (s Settings) NormalizedKnownBots() []string {
	bots := make([]string, 0, len(s.KnownBots))
	for _, b := range s.KnownBots {
		bots = append(bots, strings.ToLower(b))
	}

	return bots
}

// SettingsFromFile reads the settings file at path. An empty or missing
// file yields the defaults; entries in the file override their default.
func SettingsFromFile(fs afero.Fs, path string) (Settings, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return Settings{}, err
	}

	defer f.Close()

	return settingsFromReader(f)
}

// SettingsFromDisk reads the settings file from the user's config
// directory, creating an empty one when missing.
func SettingsFromDisk() (Settings, error) {
	f, err := openCreateConfigFile(afero.NewOsFs(), settingsFileName)
	if err != nil {
		return Settings{}, err
	}

	defer f.Close()

	return settingsFromReader(f)
}

func settingsFromReader(r io.Reader) (Settings, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Settings{}, err
	}

	settings := BuildDefaultSettings()

	if len(b) == 0 {
		return settings, nil
	}

	if err := yaml.Unmarshal(b, &settings); err != nil {
		return Settings{}, err
	}

	if err := settings.validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func openCreateConfigFile(fs afero.Fs, file string) (afero.File, error) {
	configDir, err := os.UserConfigDir() // depends on OS
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(configDir, configDirName)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return fs.OpenFile(filepath.Join(dir, file), os.O_RDWR|os.O_CREATE, 0o600)
}
