package gen

import (
	"go/token"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	rules    = ruleset()
	acronyms = make(map[string]struct{})
)

func ruleset() *inflect.Ruleset {
	rules := inflect.NewDefaultRuleset()
	for _, w := range []string{
		"ACL", "API", "ASCII", "AWS", "CPU", "CSS", "DB", "DNS", "EOF", "GUID",
		"HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "JWT", "OS", "RAM", "RPC",
		"SLA", "SMTP", "SQL", "SSH", "SSO", "TCP", "TLS", "TTL", "UDP", "UI",
		"UID", "URI", "URL", "UTF8", "UUID", "VM", "XML", "XSRF", "XSS",
	} {
		acronyms[w] = struct{}{}
		rules.AddAcronym(w)
	}
	return rules
}

// snake converts the given struct or field name into a snake_case.
//
//	Username => username
//	FullName => full_name
//	HTTPCode => http_code
func snake(s string) string {
	var (
		j int
		b strings.Builder
	)
	for i := 0; i < len(s); i++ {
		r := rune(s[i])
		// Split before an upper case letter that follows a lower case one
		// (UserInfo), or that starts a new word after an initialism (HTTPCode).
		if i > 0 && i < len(s)-1 && unicode.IsUpper(r) {
			if unicode.IsLower(rune(s[i-1])) ||
				j != i-1 && unicode.IsLower(rune(s[i+1])) && unicode.IsLetter(rune(s[i-1])) {
				j = i
				b.WriteString("_")
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || unicode.IsSpace(r)
}

func pascalWords(words []string) string {
	for i, w := range words {
		upper := strings.ToUpper(w)
		if _, ok := acronyms[upper]; ok {
			words[i] = upper
		} else {
			words[i] = rules.Capitalize(w)
		}
	}
	return strings.Join(words, "")
}

// pascal converts the given name into a PascalCase.
//
//	user_info => UserInfo
//	full_name => FullName
//	user_id   => UserID
func pascal(s string) string {
	return pascalWords(strings.FieldsFunc(s, isSeparator))
}

// camel converts the given name into a camelCase.
//
//	user_info => userInfo
//	user_id   => userID
//	http_code => httpCode
func camel(s string) string {
	words := strings.FieldsFunc(s, isSeparator)
	if len(words) == 0 {
		return ""
	}
	first := strings.ToLower(words[0])
	return first + pascalWords(words[1:])
}

// goName returns the exported Go identifier of a schema name.
//
//	authorId  => AuthorID
//	createdAt => CreatedAt
//	api_key   => APIKey
func goName(s string) string {
	name := pascal(snake(s))
	if name == "" || !token.IsIdentifier(name) {
		return "X" + name
	}
	return name
}

// receiver returns the receiver name of the given type.
//
//	User     => u
//	UserInfo => ui
//	IfFunc   => _if
func receiver(s string) string {
	var b strings.Builder
	for _, w := range strings.Split(snake(strings.Trim(s, "_")), "_") {
		if w != "" {
			b.WriteByte(w[0])
		}
	}
	name := strings.ToLower(b.String())
	if name == "" {
		return "_x"
	}
	if token.Lookup(name).IsKeyword() {
		name = "_" + name
	}
	return name
}

// plural returns the plural form of a type name. Names that have no
// distinct plural get a Slice suffix.
//
//	User     => Users
//	Category => Categories
//	Sheep    => SheepSlice
func plural(name string) string {
	p := rules.Pluralize(name)
	if p == name {
		p += "Slice"
	}
	return p
}

// enumConstant returns the constant name of an enum value. Upper case
// values are title cased word by word.
//
//	Role, Admin          => RoleAdmin
//	Status, IN_PROGRESS  => StatusInProgress
func enumConstant(enum, value string) string {
	if strings.ToUpper(value) != value {
		return goName(enum) + goName(value)
	}
	// A Caser is stateful and cannot be shared between goroutines.
	title := cases.Title(language.English)
	words := strings.FieldsFunc(strings.ToLower(value), isSeparator)
	for i, w := range words {
		words[i] = title.String(w)
	}
	return goName(enum) + strings.Join(words, "")
}
