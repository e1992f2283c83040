// Package router categorizes input files as movies, series episodes, or anime
// and derives the destination path under the output root. Categorization is a
// pure function of the input path, the output root, and the configured
// patterns, so repeated calls always agree.
package router
