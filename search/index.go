package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	management "github.com/robertoporfiro/gravitee-management-rest-api"
)

// Document is the indexed view of an identity
type Document struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayname"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	terms       []string
}

// Index is an in-memory user index. It is safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]Document
}

var _ management.SearchIndexer = (*Index)(nil)

func NewIndex() *Index {
	return &Index{docs: map[uuid.UUID]Document{}}
}

// Index adds or replaces the document of user.
func (i *Index) Index(ctx context.Context, user *management.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil || user.ID == uuid.Nil {
		return nil
	}

	doc := Document{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName(),
		Source:      user.Source,
		Status:      string(user.Status),
	}
	doc.terms = terms(user.Email, user.FirstName, user.LastName, user.SourceID)

	i.mu.Lock()
	i.docs[user.ID] = doc
	i.mu.Unlock()
	return nil
}

func (i *Index) Delete(ctx context.Context, user *management.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	i.mu.Lock()
	delete(i.docs, user.ID)
	i.mu.Unlock()
	return nil
}

// Get returns the document indexed for id.
func (i *Index) Get(id uuid.UUID) (Document, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	doc, ok := i.docs[id]
	return doc, ok
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Search returns documents having a term that starts with every word of
// query, sorted by display name. An empty query matches everything.
func (i *Index) Search(query string) []Document {
	words := strings.Fields(strings.ToLower(query))

	i.mu.RLock()
	out := make([]Document, 0, len(i.docs))
	for _, doc := range i.docs {
		if matches(doc.terms, words) {
			out = append(out, doc)
		}
	}
	i.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].DisplayName == out[b].DisplayName {
			return out[a].ID.String() < out[b].ID.String()
		}
		return out[a].DisplayName < out[b].DisplayName
	})
	return out
}

func matches(terms, words []string) bool {
	for _, word := range words {
		found := false
		for _, term := range terms {
			if strings.HasPrefix(term, word) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func terms(values ...string) []string {
	out := []string{}
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		out = append(out, v)
		if local, _, ok := strings.Cut(v, "@"); ok && local != "" {
			out = append(out, local)
		}
		out = append(out, strings.Fields(v)...)
	}
	return out
}
