// Package notify fans one message out to every configured push channel.
package notify

// Config carries per-channel credentials. It is a value type on purpose:
// every request embeds its own copy, so editing the live configuration never
// changes an in-flight send.
type Config struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	BarkToken      string `yaml:"bark_token" json:"bark_token"`
	PushPlusToken  string `yaml:"pushplus_token" json:"pushplus_token"`
	ServerChanToken string `yaml:"serverchan_token" json:"serverchan_token"`
	DingTalkToken  string `yaml:"dingtalk_token" json:"dingtalk_token"`
	WeComToken     string `yaml:"wecom_token" json:"wecom_token"`

	Gotify GotifyConfig `yaml:"gotify" json:"gotify"`
	SMTP   SMTPConfig   `yaml:"smtp" json:"smtp"`
}

type GotifyConfig struct {
	URL   string `yaml:"url" json:"url"`
	Token string `yaml:"token" json:"token"`
}

type SMTPConfig struct {
	Server   string `yaml:"server" json:"server"`
	Port     string `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
	To       string `yaml:"to" json:"to"`
}

// Empty reports whether no channel has a usable credential.
func (c Config) Empty() bool {
	for _, ch := range channels {
		if ch.Configured(c) {
			return false
		}
	}
	return true
}
