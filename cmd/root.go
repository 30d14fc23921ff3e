package cmd

import (
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "formfill"
)

type Config struct {
	Answers    *AnswersConfig `mapstructure:"answers"`
	Vocabulary string         `mapstructure:"vocabulary"`
	Profile    string         `mapstructure:"profile"`
	AI         *AIConfig      `mapstructure:"ai"`
	Server     *ServerConfig  `mapstructure:"server"`
}

type AnswersConfig struct {
	// Backend is one of file, sqlite, postgres.
	Backend         string `mapstructure:"backend"`
	Dir             string `mapstructure:"dir"`
	SQLitePath      string `mapstructure:"sqlite-path"`
	PostgresDSN     string `mapstructure:"postgres-dsn"`
	PostgresDSNFile string `mapstructure:"postgres-dsn-file"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	Instructions string        `mapstructure:"instructions"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ServerConfig struct {
	Addr  string `mapstructure:"addr"`
	Watch bool   `mapstructure:"watch"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "formfill answers job application form questions from learned answers, rules and your profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindings := map[string]string{
		"profile":                   "FORMFILL_PROFILE",
		"ai.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
		"answers.postgres-dsn-file": "FORMFILL_POSTGRES_DSN_FILE",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("answers.backend", "file")
	viper.SetDefault("answers.dir", "answers")
	viper.SetDefault("answers.sqlite-path", app+".db")
	viper.SetDefault("server.addr", ":8080")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is formfill.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command works without any config.
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Without a config file everything runs on defaults and no profiles.
		return
	}

	// We can't proceed if the config file parsed with error.
	if err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Answers == nil {
		config.Answers = &AnswersConfig{Backend: "file", Dir: "answers"}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}

	return config, nil
}
