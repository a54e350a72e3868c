// services/nub/internal/bootargs/bootargs.go
package bootargs

import (
	"os"
	"strings"

	"github.com/google/shlex"
)

// ForcePolling is the boot flag that disables pin-based interrupts for every nub.
const ForcePolling = "-vi2c-force-polling"

// DefaultPath is where the running kernel exposes its command line.
const DefaultPath = "/proc/cmdline"

// Args is a parsed boot command line.
type Args struct {
	words []string
}

// Parse splits a command line with shell quoting rules. A line shlex cannot
// split (for example an unterminated quote) falls back to whitespace splitting.
func Parse(line string) Args {
	words, err := shlex.Split(line)
	if err != nil {
		words = strings.Fields(line)
	}
	return Args{words: words}
}

// Load reads and parses the command line at path. A missing file yields no args.
func Load(path string) (Args, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Args{}, nil
		}
		return Args{}, err
	}
	return Parse(string(b)), nil
}

// Has reports whether flag appears as a bare word or as flag=value.
func (a Args) Has(flag string) bool {
	for _, w := range a.words {
		if w == flag || strings.HasPrefix(w, flag+"=") {
			return true
		}
	}
	return false
}

// Value returns the value of key=value, if present. The last occurrence wins.
func (a Args) Value(key string) (string, bool) {
	var (
		v  string
		ok bool
	)
	for _, w := range a.words {
		if strings.HasPrefix(w, key+"=") {
			v, ok = w[len(key)+1:], true
		}
	}
	return v, ok
}
