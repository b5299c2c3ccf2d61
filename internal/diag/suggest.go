package diag

import "strings"

// suggestionRule maps a message substring to a fix hint. Rules are checked
// in order and the first hit wins, so more specific phrasings go first.
type suggestionRule struct {
	contains string
	hint     string
}

var suggestionRules = []suggestionRule{
	{"was not declared", "Check the spelling of the identifier and make sure the header that declares it is included."},
	{"expected ';'", "A semicolon is probably missing at the end of the previous line."},
	{"does not name a type", "The type is not known here. Include the header that defines it or fix the spelling."},
	{"No such file or directory", "The included file was not found. Install the library that provides it or check the include path."},
	{"#include expects", "The #include directive needs a filename in quotes or angle brackets."},
	{"undefined reference to", "Something is declared but never defined. Make sure the defining source file or library is part of the build."},
	{"expected declaration before '}'", "The braces are unbalanced. Look for an extra closing brace or a missing opening one above this line."},
	{"expected unqualified-id", "There is a syntax error near this token. Check the declaration just before it."},
	{"redefinition of", "The name is defined more than once. Remove or rename one of the definitions."},
	{"invalid conversion from", "The value types do not match. Add an explicit cast or change the variable type."},
	{"too few arguments to function", "The call passes fewer arguments than the function declares. Compare the call with the declaration."},
	{"too many arguments to function", "The call passes more arguments than the function declares. Compare the call with the declaration."},
	{"unused variable", "The variable is never used. Remove it if it is not needed."},
	{"comparison between signed and unsigned", "A signed and an unsigned value are being compared. Cast one side to the other's type."},
	{"control reaches end of non-void function", "The function promises a return value but can fall off the end. Add a return statement."},
}

// suggestionFor returns the hint of the first rule whose substring occurs
// in message, or "" when none match.
func suggestionFor(message string) string {
	for _, r := range suggestionRules {
		if strings.Contains(message, r.contains) {
			return r.hint
		}
	}
	return ""
}
