package dialogue

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dotcommander/parley/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)\}`)

// Substitute replaces placeholders in text. Named variables win over the
// speaker and target built-ins; anything that cannot be resolved stays in the
// text verbatim.
//
// Built-ins: {speaker}, {speaker.name}, {speaker.id}, {speaker.subject},
// {speaker.object}, {speaker.possessive}, {speaker.reflexive},
// {speaker.faction}, and the same set for target. Writing the placeholder
// with a leading capital ({Speaker.subject}) capitalises the value.
func (b *Builder) Substitute(text string, speaker, target *domain.Character) string {
	if !strings.Contains(text, "{") {
		return text
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := b.variables[name]; ok {
			return v
		}

		capital := startsUpper(name)
		lowered := lowerFirst(name)
		value, ok := b.variables[lowered]
		if !ok {
			value, ok = builtin(strings.ToLower(name), speaker, target)
		}
		if !ok || value == "" {
			return match
		}
		if capital {
			return capitalise(value)
		}
		return value
	})
}

func builtin(name string, speaker, target *domain.Character) (string, bool) {
	root, field, _ := strings.Cut(name, ".")

	var c *domain.Character
	switch root {
	case "speaker":
		c = speaker
	case "target":
		c = target
	default:
		return "", false
	}
	if c == nil {
		return "", false
	}

	p := c.PronounsOrDefault()
	switch field {
	case "", "name":
		return c.Name, true
	case "id":
		return c.ID, true
	case "subject":
		return p.Subject, true
	case "object":
		return p.Object, true
	case "possessive":
		return p.Possessive, true
	case "reflexive":
		return p.Reflexive, true
	case "faction":
		return c.FactionID, true
	}
	return "", false
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

func capitalise(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	// Casers are stateful; one per call.
	return cases.Upper(language.Und).String(s[:size]) + s[size:]
}
