package dbcore

import "fmt"

// IdentifierAllowList validates table/column/language-code identifiers
// interpolated into SQL templates (§4.2 Query protection). Values are
// always passed through parameter binding; only identifiers pass through
// this allow-list.
type IdentifierAllowList struct {
	allowed map[string]struct{}
}

// NewIdentifierAllowList builds an allow-list from a fixed set of names,
// typically the repository layer's known table and column names.
func NewIdentifierAllowList(names ...string) *IdentifierAllowList {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return &IdentifierAllowList{allowed: allowed}
}

// Validate returns ErrIdentifierNotAllowed if name is not registered.
func (l *IdentifierAllowList) Validate(name string) error {
	if _, ok := l.allowed[name]; !ok {
		return fmt.Errorf("%w: %q", ErrIdentifierNotAllowed, name)
	}
	return nil
}

// MustValidate panics if name is not allowed. Reserved for identifiers
// fixed at compile time (e.g. a literal table name in repository code),
// where rejection would indicate a programming error, not untrusted input.
func (l *IdentifierAllowList) MustValidate(name string) string {
	if err := l.Validate(name); err != nil {
		panic(err)
	}
	return name
}

// Add registers additional identifiers, e.g. per-language columns computed
// at startup from config.NLUConfig.LanguagesSupported.
func (l *IdentifierAllowList) Add(names ...string) {
	for _, n := range names {
		l.allowed[n] = struct{}{}
	}
}
