package resolve

import "strings"

// ExactPhraseQuery builds `lang:<code> !"<name>"`.
func ExactPhraseQuery(lang, name string) string {
	return "lang:" + lang + ` !"` + escapePhrase(name) + `"`
}

// PhraseQuery builds `lang:<code> "<name>"`.
func PhraseQuery(lang, name string) string {
	return "lang:" + lang + ` "` + escapePhrase(name) + `"`
}

// OracleQuery builds `oracleid:<id> lang:<code>`.
func OracleQuery(oracleID, lang string) string {
	return "oracleid:" + oracleID + " lang:" + lang
}

func escapePhrase(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
