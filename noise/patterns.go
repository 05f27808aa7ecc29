package noise

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind names the operation a single pattern token performs against a
// HandshakeState. The catalog below mirrors handshakestate.rs's Token enum
// (Token::E/S/Dhee/Dhes/Dhse/Dhss/Psk), generalized from mixmasala-noise's
// MessagePattern/HandshakePattern table shape into a single flat enum.
type TokenKind int

const (
	TokenE TokenKind = iota
	TokenS
	TokenEE
	TokenES
	TokenSE
	TokenSS
	TokenPSK
)

// Token is one step of a message pattern. N is only meaningful for
// TokenPSK, where it selects which entry of HandshakeState's psks array to
// mix in (spec §3, "PSK(n)").
type Token struct {
	Kind TokenKind
	N    int
}

// PatternTokens is the fully-resolved token form of one handshake pattern,
// including any psk modifiers already folded in.
type PatternTokens struct {
	PreMessageInitiator []Token
	PreMessageResponder []Token
	Messages            [][]Token
}

// PatternLookup resolves a base pattern name and its modifiers into tokens.
// Pulling this out as an interface (rather than a free function) lets
// callers register additional patterns without touching this package, per
// spec §2's requirement that pattern parsing be swappable.
type PatternLookup interface {
	Lookup(name string, modifiers []string) (PatternTokens, error)
}

// BuiltinPatterns implements PatternLookup against the fundamental and
// interactive patterns defined by the Noise specification.
type BuiltinPatterns struct{}

var basePatterns = map[string]PatternTokens{
	"N": {
		PreMessageResponder: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenES}},
		},
	},
	"K": {
		PreMessageInitiator: []Token{{Kind: TokenS}},
		PreMessageResponder: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenES}, {Kind: TokenSS}},
		},
	},
	"X": {
		PreMessageResponder: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenES}, {Kind: TokenS}, {Kind: TokenSS}},
		},
	},
	"NN": {
		Messages: [][]Token{
			{{Kind: TokenE}},
			{{Kind: TokenE}, {Kind: TokenEE}},
		},
	},
	"NK": {
		PreMessageResponder: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenES}},
			{{Kind: TokenE}, {Kind: TokenEE}},
		},
	},
	"NX": {
		Messages: [][]Token{
			{{Kind: TokenE}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenS}, {Kind: TokenES}},
		},
	},
	"XN": {
		Messages: [][]Token{
			{{Kind: TokenE}},
			{{Kind: TokenE}, {Kind: TokenEE}},
			{{Kind: TokenS}, {Kind: TokenSE}},
		},
	},
	"XK": {
		PreMessageResponder: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenES}},
			{{Kind: TokenE}, {Kind: TokenEE}},
			{{Kind: TokenS}, {Kind: TokenSE}},
		},
	},
	"XX": {
		Messages: [][]Token{
			{{Kind: TokenE}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenS}, {Kind: TokenES}},
			{{Kind: TokenS}, {Kind: TokenSE}},
		},
	},
	"KN": {
		PreMessageInitiator: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenSE}},
		},
	},
	"KK": {
		PreMessageInitiator: []Token{{Kind: TokenS}},
		PreMessageResponder: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenES}, {Kind: TokenSS}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenSE}},
		},
	},
	"KX": {
		PreMessageInitiator: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenSE}, {Kind: TokenS}, {Kind: TokenES}},
		},
	},
	"IN": {
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenS}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenSE}},
		},
	},
	"IK": {
		PreMessageResponder: []Token{{Kind: TokenS}},
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenES}, {Kind: TokenS}, {Kind: TokenSS}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenSE}},
		},
	},
	"IX": {
		Messages: [][]Token{
			{{Kind: TokenE}, {Kind: TokenS}},
			{{Kind: TokenE}, {Kind: TokenEE}, {Kind: TokenSE}, {Kind: TokenS}, {Kind: TokenES}},
		},
	},
}

func cloneTokens(in []Token) []Token {
	out := make([]Token, len(in))
	copy(out, in)
	return out
}

func clonePattern(p PatternTokens) PatternTokens {
	out := PatternTokens{
		PreMessageInitiator: cloneTokens(p.PreMessageInitiator),
		PreMessageResponder: cloneTokens(p.PreMessageResponder),
		Messages:            make([][]Token, len(p.Messages)),
	}
	for i, m := range p.Messages {
		out.Messages[i] = cloneTokens(m)
	}
	return out
}

// Lookup resolves name against the fundamental/interactive pattern table and
// applies any "pskN" modifiers in the order given.
func (BuiltinPatterns) Lookup(name string, modifiers []string) (PatternTokens, error) {
	base, ok := basePatterns[name]
	if !ok {
		return PatternTokens{}, patternErr(fmt.Sprintf("unknown pattern %q", name))
	}
	tokens := clonePattern(base)
	for _, mod := range modifiers {
		if !strings.HasPrefix(mod, "psk") {
			return PatternTokens{}, patternErr(fmt.Sprintf("unknown modifier %q", mod))
		}
		n, err := strconv.Atoi(strings.TrimPrefix(mod, "psk"))
		if err != nil || n < 0 {
			return PatternTokens{}, patternErr(fmt.Sprintf("malformed psk modifier %q", mod))
		}
		if n == 0 {
			tokens.Messages[0] = append([]Token{{Kind: TokenPSK, N: 0}}, tokens.Messages[0]...)
			continue
		}
		if n > len(tokens.Messages) {
			return PatternTokens{}, patternErr(fmt.Sprintf("psk%d has no matching message", n))
		}
		idx := n - 1
		tokens.Messages[idx] = append(tokens.Messages[idx], Token{Kind: TokenPSK, N: n})
	}
	return tokens, nil
}

// ParsePatternName splits a compound name like "XXpsk0psk2" into its base
// pattern ("XX") and ordered modifier list (["psk0", "psk2"]).
func ParsePatternName(name string) (base string, modifiers []string) {
	idx := strings.Index(name, "psk")
	if idx < 0 {
		return name, nil
	}
	base = name[:idx]
	rest := name[idx:]
	for len(rest) > 0 {
		end := strings.Index(rest[3:], "psk")
		if end < 0 {
			modifiers = append(modifiers, rest)
			break
		}
		modifiers = append(modifiers, rest[:3+end])
		rest = rest[3+end:]
	}
	return base, modifiers
}
