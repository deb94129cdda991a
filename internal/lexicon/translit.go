package lexicon

import "strings"

// translitTable maps Bulgarian Cyrillic letters to the official streamlined
// Latin romanisation. Double Metaphone ignores anything it cannot encode, so
// unknown runes pass through unchanged.
var translitTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ж': "zh", 'з': "z", 'и': "i", 'й': "y",
	'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh",
	'щ': "sht", 'ъ': "a", 'ь': "y", 'ю': "yu", 'я': "ya",
}

// transliterate converts a lowercase Cyrillic word to its Latin romanisation.
func transliterate(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		if lat, ok := translitTable[r]; ok {
			b.WriteString(lat)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
