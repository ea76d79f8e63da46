package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// params gives typed access to the parameters of a command table.
type params CommandSpec

func (p params) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p params) str(key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("parameter %s: %w", key, err)
	}
	return s, nil
}

func (p params) requiredStr(key string) (string, error) {
	if !p.has(key) {
		return "", fmt.Errorf("missing parameter %s", key)
	}
	s, err := p.str(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("parameter %s is empty", key)
	}
	return s, nil
}

func (p params) boolean(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def, fmt.Errorf("parameter %s: %w", key, err)
	}
	return b, nil
}

func (p params) integer(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def, fmt.Errorf("parameter %s: %w", key, err)
	}
	return n, nil
}

// duration accepts a number of seconds or a Go duration string ("1.5s").
func (p params) duration(key string) (time.Duration, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing parameter %s", key)
	}
	var d time.Duration
	if s, isString := v.(string); isString {
		parsed, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		d = parsed
	} else {
		sec, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", key, err)
		}
		d = time.Duration(sec * float64(time.Second))
	}
	if d < 0 {
		return 0, fmt.Errorf("parameter %s: negative duration %v", key, d)
	}
	return d, nil
}

// strs accepts a list or a single string.
func (p params) strs(key string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	if s, isString := v.(string); isString {
		return []string{s}, nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", key, err)
	}
	return out, nil
}
