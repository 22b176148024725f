// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

type GatewayConfig struct {
	// Routing: dispatch defaults
	Routing RoutingConfig `yaml:"routing"`

	// Memory: per-session sliding window
	Memory MemoryConfig `yaml:"memory"`

	// Voice: speech synthesis settings
	Voice VoiceConfig `yaml:"voice"`
}

type RoutingConfig struct {
	DefaultDomain string `yaml:"default_domain"` // e.g. banking
	IntentsPath   string `yaml:"intents_path"`   // path to intents.json
}

type MemoryConfig struct {
	Window int `yaml:"window"` // messages kept per session
}

type VoiceConfig struct {
	VoiceID    string `yaml:"voice_id"`
	Format     string `yaml:"format"`      // codec: mp3 or pcm
	SampleRate int    `yaml:"sample_rate"` // hz, provider-dependent
}

func DefaultConfig() GatewayConfig {
	return GatewayConfig{
		Routing: RoutingConfig{
			DefaultDomain: "banking",
			IntentsPath:   "config/intents.json",
		},
		Memory: MemoryConfig{
			Window: 16,
		},
		Voice: VoiceConfig{
			Format:     "mp3",
			SampleRate: 44100,
		},
	}
}
