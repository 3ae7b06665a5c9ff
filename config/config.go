package config

import (
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const envPrefix = "SURVEYER_"

type Config struct {
	Addr string
	// APIUrl is the base URL of the survey API every request is forwarded to.
	APIUrl string
	// StorageUrl selects the profile storage: a SQLite path or a redis:// URL.
	StorageUrl    string
	Timeout       time.Duration
	SessionTTL    time.Duration
	MaxSessions   int
	SecureCookies bool
	Debug         bool
}

// ParseFlags loads an optional .env file, then reads the command line. Every
// flag defaults to its SURVEYER_* environment variable.
func ParseFlags() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "config: .env")
	}
	return Parse(flag.CommandLine, os.Args[1:])
}

func Parse(fs *flag.FlagSet, args []string) (cfg Config, err error) {
	var errs *multierror.Error
	env := envReader{errs: &errs}

	var host string
	fs.StringVar(&host, "host", env.String("HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", env.Uint("PORT", 8080), "listen port number")
	fs.StringVar(&cfg.APIUrl, "api-url", env.String("API_URL", "http://localhost:8081"), "base URL of the survey API")
	fs.StringVar(&cfg.StorageUrl, "storage", env.String("STORAGE", "surveyer.sqlite"), "SQLite3 file path or redis:// URL for session profiles")
	fs.DurationVar(&cfg.Timeout, "timeout", env.Duration("TIMEOUT", 30*time.Second), "timeout of each survey API request")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", env.Duration("SESSION_TTL", 24*time.Hour), "how long a client session is kept")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", int(env.Uint("MAX_SESSIONS", 10000)), "max client sessions held in memory")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", env.Bool("SECURE_COOKIES", false), "mark the client cookie Secure")
	fs.BoolVar(&cfg.Debug, "debug", env.Bool("DEBUG", false), "log at DEBUG level")
	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))

	if cfg.APIUrl == "" {
		errs = multierror.Append(errs, errors.New("missing parameter -api-url"))
	}
	if cfg.MaxSessions <= 0 {
		errs = multierror.Append(errs, errors.New("-max-sessions must be positive"))
	}
	if cfg.Timeout <= 0 {
		errs = multierror.Append(errs, errors.New("-timeout must be positive"))
	}

	err = errs.ErrorOrNil()
	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

// envReader reads SURVEYER_* variables, collecting malformed values.
type envReader struct {
	errs **multierror.Error
}

func (e envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	return v, ok && v != ""
}

func (e envReader) fail(key string, err error) {
	*e.errs = multierror.Append(*e.errs, errors.Wrapf(err, "%s%s", envPrefix, key))
}

func (e envReader) String(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e envReader) Uint(key string, def uint) uint {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 0)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return uint(n)
}

func (e envReader) Bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e envReader) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}
