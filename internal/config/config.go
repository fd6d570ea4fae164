// Package config provides configuration types and loading for careclaw.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Providers, Channels, Tools, Memory, Geo, Budget.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Tools     ToolsConfig     `json:"tools"`
	Memory    MemoryConfig    `json:"memory"`
	Geo       GeoConfig       `json:"geo"`
	Budget    BudgetConfig    `json:"budget"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir      string `json:"dataDir" envconfig:"DATA_DIR"`
	TranscriptDB string `json:"transcriptDb" envconfig:"TRANSCRIPT_DB"`
}

// ModelConfig groups LLM model and loop settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxRounds   int     `json:"maxRounds" envconfig:"MAX_ROUNDS"`
}

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI ProviderConfig `json:"openai"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Kafka    KafkaConfig    `json:"kafka"`
}

// WhatsAppConfig configures the WhatsApp channel.
type WhatsAppConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"WHATSAPP_ENABLED"`
	StorePath string   `json:"storePath" envconfig:"WHATSAPP_STORE_PATH"`
	AllowFrom []string `json:"allowFrom"`
}

// KafkaConfig configures the Kafka channel.
type KafkaConfig struct {
	Enabled       bool     `json:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers       []string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	InboundTopic  string   `json:"inboundTopic" envconfig:"KAFKA_INBOUND_TOPIC"`
	UpdatesTopic  string   `json:"updatesTopic" envconfig:"KAFKA_UPDATES_TOPIC"`
	StatusTopic   string   `json:"statusTopic" envconfig:"KAFKA_STATUS_TOPIC"`
	ConsumerGroup string   `json:"consumerGroup" envconfig:"KAFKA_CONSUMER_GROUP"`
}

// ToolsConfig contains tool adapter configurations.
type ToolsConfig struct {
	Search SearchConfig `json:"search"`
	Alert  AlertConfig  `json:"alert"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey  string `json:"apiKey" envconfig:"BRAVE_API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// AlertConfig configures the emergency alert tool.
type AlertConfig struct {
	SlackWebhookURL string `json:"slackWebhookUrl" envconfig:"SLACK_WEBHOOK_URL"`
}

// MemoryConfig configures the knowledge retriever.
type MemoryConfig struct {
	// Backend is "qdrant" or "sqlite".
	Backend    string `json:"backend" envconfig:"BACKEND"`
	QdrantURL  string `json:"qdrantUrl" envconfig:"QDRANT_URL"`
	Collection string `json:"collection" envconfig:"COLLECTION"`
	SQLitePath string `json:"sqlitePath" envconfig:"SQLITE_PATH"`
	Dimension  int    `json:"dimension" envconfig:"DIMENSION"`
	TopK       int    `json:"topK" envconfig:"TOP_K"`
}

// GeoConfig configures the location resolver.
type GeoConfig struct {
	BaseURL   string `json:"baseUrl" envconfig:"BASE_URL"`
	UserAgent string `json:"userAgent" envconfig:"USER_AGENT"`
}

// BudgetConfig configures the per-turn token budget split.
type BudgetConfig struct {
	TotalTokens           int `json:"totalTokens" envconfig:"TOTAL_TOKENS"`
	SystemReserve         int `json:"systemReserve" envconfig:"SYSTEM_RESERVE"`
	KnowledgeCap          int `json:"knowledgeCap" envconfig:"KNOWLEDGE_CAP"`
	CurrentMessageReserve int `json:"currentMessageReserve" envconfig:"CURRENT_MESSAGE_RESERVE"`
	MinHistoryEntries     int `json:"minHistoryEntries" envconfig:"MIN_HISTORY_ENTRIES"`
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:      "~/.careclaw",
			TranscriptDB: "~/.careclaw/transcript.db",
		},
		Model: ModelConfig{
			Name:        "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
			MaxRounds:   5,
		},
		Channels: ChannelsConfig{
			Kafka: KafkaConfig{
				InboundTopic:  "careclaw.inbound",
				UpdatesTopic:  "careclaw.updates",
				StatusTopic:   "careclaw.status",
				ConsumerGroup: "careclaw-agent",
			},
		},
		Memory: MemoryConfig{
			Backend:    "sqlite",
			QdrantURL:  "http://localhost:6333",
			Collection: "careclaw_knowledge",
			SQLitePath: "~/.careclaw/knowledge.db",
			Dimension:  1536,
			TopK:       5,
		},
		Geo: GeoConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "careclaw/1.0",
		},
		Budget: BudgetConfig{
			TotalTokens:           8000,
			SystemReserve:         1500,
			KnowledgeCap:          1000,
			CurrentMessageReserve: 500,
			MinHistoryEntries:     4,
		},
	}
}
