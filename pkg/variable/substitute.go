package variable

import "regexp"

// MaxSubstitutionDepth bounds recursive expansion of tokens whose values
// contain further tokens.
const MaxSubstitutionDepth = 5

var tokenPattern = regexp.MustCompile(`\{\$(.*?)\}`)

// Resolver maps a variable key to its display string.
type Resolver interface {
	Lookup(key string) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(key string) (string, bool)

// Lookup calls f.
func (f ResolverFunc) Lookup(key string) (string, bool) { return f(key) }

// Substitute replaces {$Key} tokens in text. Resolvers are consulted in
// order and the first hit wins. Tokens still unresolved after
// MaxSubstitutionDepth passes are replaced with the empty string.
func Substitute(text string, resolvers ...Resolver) string {
	for depth := 0; depth < MaxSubstitutionDepth; depth++ {
		if !tokenPattern.MatchString(text) {
			return text
		}

		changed := false
		text = tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
			key := tokenPattern.FindStringSubmatch(token)[1]
			for _, r := range resolvers {
				if r == nil {
					continue
				}
				if value, ok := r.Lookup(key); ok {
					changed = true
					return value
				}
			}
			return token
		})
		if !changed {
			break
		}
	}
	return tokenPattern.ReplaceAllString(text, "")
}

// HasTokens reports whether text contains any {$Key} token.
func HasTokens(text string) bool {
	return tokenPattern.MatchString(text)
}
