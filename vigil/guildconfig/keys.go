package guildconfig

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
)

// Known config keys.
const (
	KeyCommandPrefix = "command_prefix"
	KeySpamConfig    = "spam_config"
	KeyMuteRole      = "mute_role"
	KeyModLogChannel = "mod_log_channel"
)

// DefaultCommandPrefix is used until a guild sets its own.
const DefaultCommandPrefix = "!"

// ValidationError rejects a bad config write before anything is stored.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Key, e.Reason)
}

// keySpec describes one config key: operator-facing help and a validator
// that turns raw command input into the canonical stored JSON.
type keySpec struct {
	help     string
	validate func(input string) (json.RawMessage, error)
}

var keyRegistry = map[string]keySpec{
	KeyCommandPrefix: {
		help: "A single character which will precede commands.",
		validate: func(input string) (json.RawMessage, error) {
			if utf8.RuneCountInString(input) != 1 {
				return nil, &ValidationError{Key: KeyCommandPrefix, Reason: "must be exactly one character"}
			}
			return json.Marshal(input)
		},
	},
	KeySpamConfig: {
		help: "JSON object with the pressure scoring parameters; all fields required.",
		validate: func(input string) (json.RawMessage, error) {
			cfg, err := ParseSpamConfig([]byte(input))
			if err != nil {
				return nil, err
			}
			return json.Marshal(cfg)
		},
	},
	KeyMuteRole: {
		help: "Role to assign to silenced users.",
		validate: func(input string) (json.RawMessage, error) {
			id, err := snowflake.Parse(input)
			if err != nil {
				return nil, &ValidationError{Key: KeyMuteRole, Reason: "must be a role id"}
			}
			return json.Marshal(id)
		},
	},
	KeyModLogChannel: {
		help: "Channel for logging moderation actions.",
		validate: func(input string) (json.RawMessage, error) {
			id, err := snowflake.Parse(input)
			if err != nil {
				return nil, &ValidationError{Key: KeyModLogChannel, Reason: "must be a channel id"}
			}
			return json.Marshal(id)
		},
	},
}

// Keys returns the known config key names, sorted.
func Keys() []string {
	keys := make([]string, 0, len(keyRegistry))
	for k := range keyRegistry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Help returns the help text for a known key.
func Help(name string) (string, bool) {
	spec, ok := keyRegistry[name]
	if !ok {
		return "", false
	}
	return spec.help, true
}
