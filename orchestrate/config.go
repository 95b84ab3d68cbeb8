package orchestrate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultTimeoutSeconds = 120

// Config controls target selection and the run timeout. Lessons default
// to a local target and a 120 second budget.
type Config struct {
	UseLocalTarget bool
	TargetAddress  string
	TimeoutSeconds int

	// Command is the system-under-test invocation, argv style.
	Command []string
	Dir     string
}

func (c Config) Timeout() time.Duration {
	s := c.TimeoutSeconds
	if s <= 0 {
		s = defaultTimeoutSeconds
	}
	return time.Duration(s) * time.Second
}

// ConfigFromEnv reads the CONNCHECK_* environment options. Malformed
// values are an error rather than a silent fallback.
func ConfigFromEnv() (Config, error) {
	cfg := Config{UseLocalTarget: true, TimeoutSeconds: defaultTimeoutSeconds}

	if v := os.Getenv("CONNCHECK_USE_LOCAL_TARGET"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CONNCHECK_USE_LOCAL_TARGET=%q", v)
		}
		cfg.UseLocalTarget = b
	}
	if v := os.Getenv("CONNCHECK_TARGET_ADDRESS"); v != "" {
		cfg.TargetAddress = v
	}
	if v := os.Getenv("CONNCHECK_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid CONNCHECK_TIMEOUT_SECONDS=%q", v)
		}
		cfg.TimeoutSeconds = n
	}
	if v := os.Getenv("CONNCHECK_COMMAND"); v != "" {
		args, err := splitCommand(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CONNCHECK_COMMAND: %v", err)
		}
		cfg.Command = args
	}
	return cfg, nil
}

// splitCommand splits a command string into argv on whitespace. Single or
// double quotes group an argument containing spaces; quotes do not nest
// and there is no escape syntax.
func splitCommand(s string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote byte
		open  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			open = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if open {
				args = append(args, cur.String())
				cur.Reset()
				open = false
			}
		default:
			cur.WriteByte(c)
			open = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if open {
		args = append(args, cur.String())
	}
	return args, nil
}
