package catalog

import (
	"strings"
	"unicode"
)

// MatchResult is the outcome of resolving a free-text name against the catalog.
// Exactly one of Match or Candidates is meaningful: Match when the name is unique,
// Candidates when several entries contain it. Both empty means nothing matched.
type MatchResult[T any] struct {
	Match      *T
	Candidates []T
}

// Ambiguous reports whether several entries matched.
func (r MatchResult[T]) Ambiguous() bool {
	return r.Match == nil && len(r.Candidates) > 1
}

// MatchService resolves a name against active services. An exact name wins,
// otherwise the name must appear inside exactly one service name. A name that
// only contains a catalog name ("Katrina" vs "Rina") does not match.
func MatchService(services []Service, name string) MatchResult[Service] {
	return match(services, name, serviceFields)
}

// MatchStaff resolves a name against active staff the same way as MatchService.
func MatchStaff(staff []Staff, name string) MatchResult[Staff] {
	return match(staff, name, staffFields)
}

// MatchServiceInText finds services whose full name occurs as whole words in
// a customer message, e.g. "I'd like a creambath please". When no name occurs
// it falls back to MatchService on the whole text.
func MatchServiceInText(services []Service, text string) MatchResult[Service] {
	return matchInText(services, text, serviceFields)
}

func serviceFields(s Service) (string, bool) { return s.Name, s.Active }

func staffFields(s Staff) (string, bool) { return s.Name, s.Active }

func match[T any](items []T, name string, fields func(T) (string, bool)) MatchResult[T] {
	needle := normalizeName(name)
	if needle == "" {
		return MatchResult[T]{}
	}

	var exact, partial []T
	for _, item := range items {
		label, active := fields(item)
		hay := normalizeName(label)
		if !active || hay == "" {
			continue
		}
		switch {
		case hay == needle:
			exact = append(exact, item)
		case strings.Contains(hay, needle):
			partial = append(partial, item)
		}
	}

	switch {
	case len(exact) == 1:
		return MatchResult[T]{Match: &exact[0]}
	case len(exact) > 1:
		return MatchResult[T]{Candidates: exact}
	case len(partial) == 1:
		return MatchResult[T]{Match: &partial[0]}
	default:
		return MatchResult[T]{Candidates: partial}
	}
}

func matchInText[T any](items []T, text string, fields func(T) (string, bool)) MatchResult[T] {
	padded := " " + strings.Join(words(text), " ") + " "
	if strings.TrimSpace(padded) == "" {
		return MatchResult[T]{}
	}

	var found []T
	var names []string
	for _, item := range items {
		label, active := fields(item)
		name := strings.Join(words(label), " ")
		if !active || name == "" {
			continue
		}
		if strings.Contains(padded, " "+name+" ") {
			found = append(found, item)
			names = append(names, name)
		}
	}

	// "haircut and color" also contains "haircut"; the longer name wins.
	kept := found[:0]
	for i, item := range found {
		shadowed := false
		for j, other := range names {
			if i != j && len(other) > len(names[i]) && strings.Contains(" "+other+" ", " "+names[i]+" ") {
				shadowed = true
				break
			}
		}
		if !shadowed {
			kept = append(kept, item)
		}
	}
	found = kept

	switch len(found) {
	case 0:
		return match(items, text, fields)
	case 1:
		return MatchResult[T]{Match: &found[0]}
	default:
		return MatchResult[T]{Candidates: found}
	}
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// words lowercases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
