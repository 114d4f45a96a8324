package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// nameIndex maps case-folded names to IDs for one kind of entity.
type nameIndex struct {
	kind  string
	ids   map[string]string
	names []string
}

func newNameIndex(kind string) *nameIndex {
	return &nameIndex{kind: kind, ids: make(map[string]string)}
}

func (n *nameIndex) add(id, name string) {
	n.ids[strings.ToLower(strings.TrimSpace(name))] = id
	n.names = append(n.names, name)
}

// lookup returns the ID for name. Unknown names produce an error message
// suggesting the closest known name.
func (n *nameIndex) lookup(name string) (string, error) {
	if id, ok := n.ids[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id, nil
	}
	if suggestion := n.closest(name); suggestion != "" {
		return "", fmt.Errorf("unknown %s %q (did you mean %q?)", n.kind, name, suggestion)
	}
	return "", fmt.Errorf("unknown %s %q", n.kind, name)
}

// closest returns the known name with the smallest edit distance, provided
// the distance is small relative to the name's length.
func (n *nameIndex) closest(name string) string {
	folded := strings.ToLower(strings.TrimSpace(name))
	maxDistance := max(2, len(folded)/3)

	best, bestDistance := "", maxDistance+1
	for _, candidate := range n.names {
		d := levenshtein.ComputeDistance(folded, strings.ToLower(candidate))
		if d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}

// resolver maps account and category names to IDs for a bulk import.
type resolver struct {
	accounts   *nameIndex
	categories *nameIndex
}

func newResolver(ctx context.Context, store service.Store, userID string) (*resolver, error) {
	r := &resolver{
		accounts:   newNameIndex("account"),
		categories: newNameIndex("category"),
	}

	accounts, err := store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	for _, a := range accounts {
		r.accounts.add(a.ID, a.Name)
	}

	categories, err := store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	for _, c := range categories {
		r.categories.add(c.ID, c.Name)
	}

	return r, nil
}

// resolve fills the row's IDs from its names. IDs already present win.
func (r *resolver) resolve(row *ImportRow) error {
	if row.AccountID == "" && row.AccountName != "" {
		id, err := r.accounts.lookup(row.AccountName)
		if err != nil {
			return err
		}
		row.AccountID = id
	}
	if row.ToAccountID == "" && row.ToAccountName != "" {
		id, err := r.accounts.lookup(row.ToAccountName)
		if err != nil {
			return err
		}
		row.ToAccountID = id
	}
	if row.CategoryID == "" && row.CategoryName != "" {
		id, err := r.categories.lookup(row.CategoryName)
		if err != nil {
			return err
		}
		row.CategoryID = id
	}
	return nil
}
