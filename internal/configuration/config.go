package configuration

import (
	"encoding/json"
	"os"
)

type MongoConfig struct {
	Uri                     string `json:"uri"`
	Database                string `json:"database"`
	UsersCollection         string `json:"usersCollection"`
	ConversationsCollection string `json:"conversationsCollection"`
	MessagesCollection      string `json:"messagesCollection"`
	ReceiptsCollection      string `json:"receiptsCollection"`
	TypingCollection        string `json:"typingCollection"`
}

type StorageConfig struct {
	// Backend selects the entity store: "mongo" or "memory".
	Backend string `json:"backend"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	SocketPort     int      `json:"socket_port"`
	SocketRoute    string   `json:"socket_route"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type JobsConfig struct {
	// TypingSweepSpec is a cron spec for the stale typing indicator sweep.
	TypingSweepSpec string `json:"typing_sweep_spec"`
}

type Config struct {
	Mongo   MongoConfig   `json:"mongo"`
	Storage StorageConfig `json:"storage"`
	Server  ServerConfig  `json:"server"`
	Jobs    JobsConfig    `json:"jobs"`
}

func LoadConfig(config_path string) (*Config, error) {
	file, err := os.ReadFile(config_path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = json.Unmarshal(file, &config)
	if err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Storage.Backend == "" {
		config.Storage.Backend = "mongo"
	}
	if config.Server.SocketRoute == "" {
		config.Server.SocketRoute = "ws"
	}
	if config.Jobs.TypingSweepSpec == "" {
		config.Jobs.TypingSweepSpec = "@every 1m"
	}
}
