package domain

import (
	tariffdomain "github.com/smallbiznis/redevance/internal/tariff/domain"
)

// MissingLines returns, per category, how many measured devices exceed the declared ones.
// Categories absent from the declaration count as fully missing.
func MissingLines(declared []tariffdomain.PricedLine, measured []tariffdomain.LineInput) []GapLine {
	type key struct{ category, subCategory string }

	declaredCounts := make(map[key]int, len(declared))
	for _, line := range declared {
		declaredCounts[key{line.Category, line.SubCategory}] += line.Count
	}

	order := make([]key, 0, len(measured))
	measuredCounts := make(map[key]int, len(measured))
	for _, line := range measured {
		k := key{line.Category, line.SubCategory}
		if _, seen := measuredCounts[k]; !seen {
			order = append(order, k)
		}
		measuredCounts[k] += line.Count
	}

	var out []GapLine
	for _, k := range order {
		missing := measuredCounts[k] - declaredCounts[k]
		if missing <= 0 {
			continue
		}
		out = append(out, GapLine{
			Category:    k.category,
			SubCategory: k.subCategory,
			Declared:    declaredCounts[k],
			Measured:    measuredCounts[k],
			Missing:     missing,
		})
	}
	return out
}
