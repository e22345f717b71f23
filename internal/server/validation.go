package server

import "regexp"

// Task ids are generated as t-xxxxxxxx but imports may carry ids from older
// exports, so only the character set and length are checked.
var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func validateID(id string) bool {
	return idRegex.MatchString(id)
}
