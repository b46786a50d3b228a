// Package config loads the merged game configuration: a base config.yaml plus
// an optional config.local.yaml override, with environment expansion and a
// small set of environment overrides for the server address.
package config

// Config is the fully resolved configuration consumed by the simulator,
// the LLM gateway, and the HTTP server.
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	AI     AIConfig     `yaml:"ai"`
	Game   GameConfig   `yaml:"game"`
	System SystemConfig `yaml:"system"`
	Paths  PathsConfig  `yaml:"paths"`
}

// LLMConfig selects the upstream chat-completions endpoint and models.
type LLMConfig struct {
	BaseURL       string `yaml:"base_url"`
	Key           string `yaml:"key"`
	ModelName     string `yaml:"model_name"`
	FastModelName string `yaml:"fast_model_name"`

	// Mode forces every task to one call mode when set to "normal" or
	// "fast"; "default" resolves per task via DefaultModes.
	Mode         string            `yaml:"mode"`
	DefaultModes map[string]string `yaml:"default_modes"`
}

// AIConfig bounds the LLM gateway.
type AIConfig struct {
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`
	MaxParseRetries       int `yaml:"max_parse_retries"`
}

// GameConfig holds world-generation and tick-phase tunables.
type GameConfig struct {
	SectNum      int    `yaml:"sect_num"`
	InitNPCNum   int    `yaml:"init_npc_num"`
	WorldHistory string `yaml:"world_history"`

	Gathering GatheringConfig `yaml:"gathering"`

	// Per-tick probabilities of random world perturbations per avatar.
	FortuneProb    float64 `yaml:"fortune_prob"`
	MisfortuneProb float64 `yaml:"misfortune_prob"`

	// Nickname eligibility thresholds (major/minor event counts).
	NicknameMajorThreshold int `yaml:"nickname_major_threshold"`
	NicknameMinorThreshold int `yaml:"nickname_minor_threshold"`
}

// GatheringConfig carries per-gathering trigger probabilities.
type GatheringConfig struct {
	SectTeachingProb float64 `yaml:"sect_teaching_prob"`
	AuctionProb      float64 `yaml:"auction_prob"`
}

// SystemConfig holds server and localization settings.
type SystemConfig struct {
	Language string `yaml:"language"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// PathsConfig locates external directories.
type PathsConfig struct {
	Saves       string `yaml:"saves"`
	Templates   string `yaml:"templates"`
	GameConfigs string `yaml:"game_configs"`
	Logs        string `yaml:"logs"`
}

// Default returns the built-in configuration; loaded files merge on top.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Mode:         "default",
			DefaultModes: map[string]string{},
		},
		AI: AIConfig{
			MaxConcurrentRequests: 10,
			MaxParseRetries:       2,
		},
		Game: GameConfig{
			SectNum:    4,
			InitNPCNum: 50,
			Gathering: GatheringConfig{
				SectTeachingProb: 0.05,
				AuctionProb:      0.02,
			},
			FortuneProb:            0.01,
			MisfortuneProb:         0.01,
			NicknameMajorThreshold: 3,
			NicknameMinorThreshold: 10,
		},
		System: SystemConfig{
			Language: "en",
			Host:     "127.0.0.1",
			Port:     8002,
		},
		Paths: PathsConfig{
			Saves:       "./saves",
			Templates:   "./templates",
			GameConfigs: "./game_configs",
			Logs:        "./logs",
		},
	}
}
