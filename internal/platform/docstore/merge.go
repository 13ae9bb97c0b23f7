package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// mergeJSON overlays the top-level fields of patch onto base.
func mergeJSON(base, patch []byte) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(base)) > 0 {
		if err := json.Unmarshal(base, &fields); err != nil {
			return nil, fmt.Errorf("docstore: decode stored body: %w", err)
		}
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("docstore: decode patch: %w", err)
	}
	for key, value := range overlay {
		fields[key] = value
	}
	return json.Marshal(fields)
}

func validBody(body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("docstore: body is not valid JSON")
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("docstore: body must be a JSON object")
	}
	return nil
}

// sortDocuments orders docs in place for stores without native ordering.
// Documents missing the field sort before those that have it.
func sortDocuments(docs []Document, opts ListOptions) []Document {
	if opts.OrderBy != "" {
		keys := make([]any, len(docs))
		for i, doc := range docs {
			keys[i] = fieldValue(doc.Body, opts.OrderBy)
		}
		idx := make([]int, len(docs))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			cmp := compareValues(keys[idx[a]], keys[idx[b]])
			if opts.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
		sorted := make([]Document, len(docs))
		for i, j := range idx {
			sorted[i] = docs[j]
		}
		docs = sorted
	}
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs
}

func fieldValue(body []byte, field string) any {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil
	}
	return fields[field]
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func sortByCreated(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}
