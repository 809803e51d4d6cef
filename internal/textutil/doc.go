// Package textutil normalizes series names and scores how alike two
// normalized names are.
//
// Normalize folds case and Unicode width, strips articles, medium tags
// (tv/ova/movie...), season markers and years, and collapses punctuation to
// single spaces. Score combines a longest-common-subsequence ratio, a
// word-set overlap, and a substring floor, taking the most generous signal.
package textutil
