package config

import "github.com/spf13/viper"

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	// Alerts is optional; low-stock notifications are disabled when the
	// token is empty.
	Alerts struct {
		TelegramToken string `mapstructure:"telegram_token"`
		AdminChatID   int64  `mapstructure:"admin_chat_id"`
	} `mapstructure:"alerts"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
