// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads bridge settings through viper.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Thermoquad/otsbridge/pkg/commands"
	"github.com/Thermoquad/otsbridge/pkg/otscan"
	"github.com/Thermoquad/otsbridge/pkg/sound"
)

// Keys
const (
	KeyLogLevel        = "logLevel"
	KeySerialPort      = "serial.port"
	KeySerialBaud      = "serial.baud"
	KeyCANBitrate      = "can.bitrate"
	KeyBridgeURL       = "bridge.url"
	KeyBridgeUsername  = "bridge.username"
	KeyBridgeNoVerify  = "bridge.noSSLVerify"
	KeyEventsURL       = "events.url"
	KeyEventsUsername  = "events.username"
	KeyEventsClient    = "events.clientType"
	KeyConsoleCommands = "console.commands"
	KeySounds          = "sounds"
	KeySoundVolume     = "sound.volume"
	KeyEventSounds     = "sound.eventSounds"
)

// SetDefaults registers every default value
func SetDefaults() {
	viper.SetDefault(KeyLogLevel, "info")

	viper.SetDefault(KeySerialPort, "")
	viper.SetDefault(KeySerialBaud, 115200)
	viper.SetDefault(KeyCANBitrate, 500000)

	viper.SetDefault(KeyBridgeURL, "")
	viper.SetDefault(KeyBridgeUsername, "admin")
	viper.SetDefault(KeyBridgeNoVerify, false)

	viper.SetDefault(KeyEventsURL, "")
	viper.SetDefault(KeyEventsUsername, "")
	viper.SetDefault(KeyEventsClient, "firmware")

	viper.SetDefault(KeyConsoleCommands, []map[string]interface{}{
		{"command": "play1", "file": "track1.wav"},
		{"command": "play2", "file": "track2.wav"},
	})

	defaults := sound.DefaultSounds()
	sounds := make([]map[string]interface{}, 0, len(defaults))
	for _, s := range defaults {
		sounds = append(sounds, map[string]interface{}{
			"index":       s.Index,
			"file":        s.File,
			"description": s.Description,
		})
	}
	viper.SetDefault(KeySounds, sounds)
	viper.SetDefault(KeySoundVolume, otscan.VolumeUsePot)
	viper.SetDefault(KeyEventSounds, true)
}

// Load sets defaults and reads the config file at path. An empty path
// searches for otsbridge.{json,yaml,toml} in the working directory and
// $HOME/.config/otsbridge; a missing file there is not an error.
func Load(path string) error {
	SetDefaults()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	viper.SetConfigName("otsbridge")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/otsbridge")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// Commands returns the console command table
func Commands() ([]commands.Entry, error) {
	var table []commands.Entry
	if err := viper.UnmarshalKey(KeyConsoleCommands, &table); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", KeyConsoleCommands, err)
	}
	return table, nil
}

// Sounds returns the sound catalog entries
func Sounds() ([]sound.Sound, error) {
	var sounds []sound.Sound
	if err := viper.UnmarshalKey(KeySounds, &sounds); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", KeySounds, err)
	}
	return sounds, nil
}

// Catalog builds the sound catalog from config
func Catalog() (*sound.Catalog, error) {
	sounds, err := Sounds()
	if err != nil {
		return nil, err
	}
	return sound.NewCatalog(sounds)
}

// Volume returns the play volume (0-100, or 255 for the potentiometer)
func Volume() (uint8, error) {
	v := viper.GetInt(KeySoundVolume)
	if v < 0 || (v > 100 && v != otscan.VolumeUsePot) {
		return 0, fmt.Errorf("%s=%d: want 0-100 or 255", KeySoundVolume, v)
	}
	return uint8(v), nil
}
