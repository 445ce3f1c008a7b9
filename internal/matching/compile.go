package matching

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"

	dErrors "wordhub/pkg/domain-errors"
)

const (
	DefaultCacheSize    = 4096
	DefaultMatchTimeout = 100 * time.Millisecond
)

// Patterns are case-insensitive, and "." and the anchors behave as they do
// for the sibling detection services.
const patternOptions = regexp2.IgnoreCase | regexp2.Multiline | regexp2.Singleline

// Compiler compiles patterns once and caches them by pattern text.
type Compiler struct {
	cache   *lru.Cache[string, *regexp2.Regexp]
	timeout time.Duration
}

// NewCompiler creates a compiler caching up to size patterns. Every compiled
// pattern carries timeout as its match budget.
func NewCompiler(size int, timeout time.Duration) (*Compiler, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	cache, err := lru.New[string, *regexp2.Regexp](size)
	if err != nil {
		return nil, err
	}
	return &Compiler{cache: cache, timeout: timeout}, nil
}

// Compile returns the compiled form of pattern. Syntax errors are
// CodeBadRequest.
func (c *Compiler) Compile(pattern string) (*regexp2.Regexp, error) {
	if re, ok := c.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp2.Compile(pattern, patternOptions)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid pattern")
	}
	re.MatchTimeout = c.timeout
	c.cache.Add(pattern, re)
	return re, nil
}

// Validate reports whether pattern compiles. It satisfies the registry's
// validator hook.
func (c *Compiler) Validate(pattern string) error {
	_, err := c.Compile(pattern)
	return err
}

// Len reports how many compiled patterns are cached.
func (c *Compiler) Len() int { return c.cache.Len() }

// IsTimeout reports whether err is a match that ran past its budget.
func IsTimeout(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "match timeout")
}

// Matches reports whether pattern matches text. Invalid patterns and
// timeouts count as no match.
func (c *Compiler) Matches(pattern, text string) bool {
	re, err := c.Compile(pattern)
	if err != nil {
		return false
	}
	ok, err := re.MatchString(text)
	return err == nil && ok
}
