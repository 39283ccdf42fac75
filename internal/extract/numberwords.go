package extract

import (
	"fmt"
	"strings"
)

var onesWords = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven",
	"eight", "nine", "ten", "eleven", "twelve", "thirteen", "fourteen",
	"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
}

var tensWords = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
	"eighty", "ninety",
}

// NumberWords spells out a non-negative integer in English. Page and
// line numbers are stored in words in the masked-content artifact so
// they do not trip the numeric masking rules downstream.
func NumberWords(n int) string {
	if n < 0 {
		return fmt.Sprintf("%d", n)
	}
	if n < 20 {
		return onesWords[n]
	}
	if n < 100 {
		word := tensWords[n/10]
		if n%10 != 0 {
			word += "-" + onesWords[n%10]
		}
		return word
	}
	if n < 1000 {
		word := onesWords[n/100] + " hundred"
		if n%100 != 0 {
			word += " " + NumberWords(n%100)
		}
		return word
	}
	if n < 1000000 {
		word := NumberWords(n/1000) + " thousand"
		if n%1000 != 0 {
			word += " " + NumberWords(n%1000)
		}
		return word
	}
	return fmt.Sprintf("%d", n)
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
