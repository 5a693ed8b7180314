package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Settings struct {
	// Address the service listens on, and the URL clients use to reach it.
	ListenAddress string
	ServiceURL    string

	NLPBaseURL        string
	NLPVersion        string
	NLPTimeoutSeconds int

	// SheetsEndpoint overrides the Sheets API base URL, mostly for testing.
	SheetsEndpoint     string
	ReadTimeoutSeconds int
	RequestsPerSecond  float64
	RequestBurst       int
	NameCacheFile      string

	GoogleClientID     string
	GoogleClientSecret string

	Locale         string
	AutoHighlight  bool
	RecentMessages int
}

func Defaults() Settings {
	return Settings{
		ListenAddress:      "127.0.0.1:8787",
		ServiceURL:         "http://127.0.0.1:8787",
		NLPBaseURL:         "http://127.0.0.1:8000",
		NLPVersion:         "v1",
		NLPTimeoutSeconds:  60,
		ReadTimeoutSeconds: 8,
		RequestsPerSecond:  1,
		RequestBurst:       5,
		NameCacheFile:      "sheetchat_names.toml",
		Locale:             "en",
		RecentMessages:     100,
	}
}

// Load reads filename, writing the defaults out if it does not exist yet,
// then applies .env and environment overrides. An empty filename skips the
// file entirely.
func Load(filename string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debugf("Ignoring .env: %v", err)
	}

	s := Defaults()
	if filename != "" {
		if err := LoadOrCreate(filename, &s); err != nil {
			return Settings{}, err
		}
	}
	applyEnv(&s)
	return s, nil
}

func applyEnv(s *Settings) {
	setString(&s.ListenAddress, "SHEETCHAT_LISTEN_ADDRESS")
	setString(&s.ServiceURL, "SHEETCHAT_SERVICE_URL")
	setString(&s.NLPBaseURL, "SHEETCHAT_NLP_URL")
	setString(&s.NLPVersion, "SHEETCHAT_NLP_VERSION")
	setString(&s.SheetsEndpoint, "SHEETCHAT_SHEETS_ENDPOINT")
	setString(&s.NameCacheFile, "SHEETCHAT_NAME_CACHE")
	setString(&s.Locale, "SHEETCHAT_LOCALE")
	setString(&s.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&s.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	if v := os.Getenv("SHEETCHAT_AUTO_HIGHLIGHT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.AutoHighlight = b
		} else {
			log.Warnf("Ignoring SHEETCHAT_AUTO_HIGHLIGHT=%q: %v", v, err)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (s Settings) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

func (s Settings) NLPTimeout() time.Duration {
	return time.Duration(s.NLPTimeoutSeconds) * time.Second
}
