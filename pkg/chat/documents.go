package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/colloquy/pkg/store"
)

// Documents returns every version of a document, oldest first. Only the
// author may read them.
func (s *Service) Documents(ctx context.Context, id, userID string) ([]store.Document, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	docs, err := s.store.GetDocumentsByID(ctx, id)
	if err != nil {
		return nil, translate(err, "get documents")
	}
	if len(docs) == 0 {
		return nil, errors.Wrap(ErrNotFound, "get documents")
	}
	if docs[0].UserID != userID {
		return nil, errors.Wrap(ErrForbidden, "document belongs to another user")
	}
	return docs, nil
}

// SaveDocument stores a new version of a document. The first version fixes
// the author; later versions must come from them.
func (s *Service) SaveDocument(ctx context.Context, userID string, doc store.Document) (store.Document, error) {
	if userID == "" {
		return store.Document{}, ErrUnauthenticated
	}
	if doc.ID == "" {
		return store.Document{}, errors.Wrap(ErrInvalidRequest, "document id is required")
	}
	existing, err := s.store.GetDocumentByID(ctx, doc.ID)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return store.Document{}, errors.Wrap(ErrForbidden, "document belongs to another user")
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return store.Document{}, translate(err, "get document")
	}

	doc.UserID = userID
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now().UTC()
	}
	doc.CreatedAt = doc.CreatedAt.Truncate(time.Millisecond)
	if err == nil && !doc.CreatedAt.After(existing.CreatedAt) {
		doc.CreatedAt = existing.CreatedAt.Add(time.Millisecond)
	}
	saved, err := s.store.SaveDocument(ctx, doc)
	if err != nil {
		return store.Document{}, translate(err, "save document")
	}
	return saved, nil
}

// DeleteDocumentsAfter removes the versions created strictly after timestamp
// together with their suggestions.
func (s *Service) DeleteDocumentsAfter(ctx context.Context, id, userID string, timestamp time.Time) error {
	if _, err := s.Documents(ctx, id, userID); err != nil {
		return err
	}
	return translate(s.store.DeleteDocumentsByIDAfterTimestamp(ctx, id, timestamp), "delete documents")
}

// authoredDocument loads the latest version of a document and checks that
// userID wrote it.
func (s *Service) authoredDocument(ctx context.Context, documentID, userID string) (store.Document, error) {
	doc, err := s.store.GetDocumentByID(ctx, documentID)
	if err != nil {
		return store.Document{}, translate(err, "get document")
	}
	if doc.UserID != userID {
		return store.Document{}, errors.Wrap(ErrForbidden, "document belongs to another user")
	}
	return doc, nil
}

// Suggestions lists the suggestions for a document. Only the document's
// author may read them. An unknown document yields an empty list.
func (s *Service) Suggestions(ctx context.Context, documentID, userID string) ([]store.Suggestion, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := s.authoredDocument(ctx, documentID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []store.Suggestion{}, nil
		}
		return nil, err
	}
	sugs, err := s.store.GetSuggestionsByDocumentID(ctx, documentID)
	if err != nil {
		return nil, translate(err, "get suggestions")
	}
	if sugs == nil {
		sugs = []store.Suggestion{}
	}
	return sugs, nil
}

// SaveSuggestions stores suggestions for documents written by userID.
func (s *Service) SaveSuggestions(ctx context.Context, userID string, suggestions []store.Suggestion) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	checked := map[string]bool{}
	for i := range suggestions {
		id := suggestions[i].DocumentID
		if id == "" {
			return errors.Wrap(ErrInvalidRequest, "suggestion needs a document id")
		}
		if !checked[id] {
			if _, err := s.authoredDocument(ctx, id, userID); err != nil {
				return err
			}
			checked[id] = true
		}
		suggestions[i].UserID = userID
		if suggestions[i].CreatedAt.IsZero() {
			suggestions[i].CreatedAt = s.now().UTC()
		}
	}
	return translate(s.store.SaveSuggestions(ctx, suggestions), "save suggestions")
}

// DocumentTimestampByIndex returns the creation time of the version at index.
// An out-of-range index yields now.
func DocumentTimestampByIndex(docs []store.Document, index int, now time.Time) time.Time {
	if index < 0 || index >= len(docs) {
		return now
	}
	return docs[index].CreatedAt
}
