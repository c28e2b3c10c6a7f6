package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crosspack/crosspack/internal/manifest"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the registry for packages matching a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

// matchKind orders search results: an exact name match beats a prefix
// match, which beats a substring ("keyword") match.
type matchKind int

const (
	matchKeyword matchKind = iota
	matchPrefix
	matchExact
)

func classifyMatch(name, query string) matchKind {
	switch {
	case name == query:
		return matchExact
	case strings.HasPrefix(name, query):
		return matchPrefix
	default:
		return matchKeyword
	}
}

// sourcedIndex is satisfied by *regsource.ConfiguredIndex; search prefers it
// to report which source a result came from, falling back to an empty
// source column for a plain single-snapshot packageIndex.
type sourcedIndex interface {
	PackageVersionsWithSource(packageName string) (string, []*manifest.PackageManifest, error)
}

type searchRow struct {
	name        string
	description string
	latest      string
	source      string
	kind        matchKind
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	l, err := prefixLayout()
	if err != nil {
		return err
	}
	idx, err := openIndex(l)
	if err != nil {
		return err
	}

	names, err := idx.SearchNames(query)
	if err != nil {
		return err
	}

	rows := make([]searchRow, 0, len(names))
	for _, name := range names {
		var (
			source   string
			versions []*manifest.PackageManifest
		)
		if si, ok := idx.(sourcedIndex); ok {
			source, versions, err = si.PackageVersionsWithSource(name)
		} else {
			versions, err = idx.PackageVersions(name)
		}
		if err != nil {
			return err
		}
		latest := latestVersion(versions)
		if latest == nil {
			continue
		}
		rows = append(rows, searchRow{
			name:   name,
			latest: latest.Version.String(),
			source: source,
			kind:   classifyMatch(name, query),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].kind != rows[j].kind {
			return rows[i].kind > rows[j].kind
		}
		if rows[i].name != rows[j].name {
			return rows[i].name < rows[j].name
		}
		return rows[i].source < rows[j].source
	})

	for _, row := range rows {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", row.name, row.description, row.latest, row.source)
	}
	return nil
}
