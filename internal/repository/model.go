package repository

// State is the persisted change-detection record. A nil field means the
// corresponding resource has never been delivered (or seen, for the page hash).
type State struct {
	LastDocumentName *string `json:"last_document_name"`
	LastDocumentHash *string `json:"last_document_hash" validate:"omitempty,hexadecimal,len=64"`
	LastArticleURL   *string `json:"last_article_url" validate:"omitempty,url"`
	LastPageHash     *string `json:"last_page_hash" validate:"omitempty,hexadecimal,len=64"`
}

// Clone returns a copy that shares no pointers with s.
func (s State) Clone() State {
	return State{
		LastDocumentName: cloneString(s.LastDocumentName),
		LastDocumentHash: cloneString(s.LastDocumentHash),
		LastArticleURL:   cloneString(s.LastArticleURL),
		LastPageHash:     cloneString(s.LastPageHash),
	}
}

// Equal compares field values, treating two nil fields as equal.
func (s State) Equal(other State) bool {
	return equalString(s.LastDocumentName, other.LastDocumentName) &&
		equalString(s.LastDocumentHash, other.LastDocumentHash) &&
		equalString(s.LastArticleURL, other.LastArticleURL) &&
		equalString(s.LastPageHash, other.LastPageHash)
}

// Value dereferences an optional field, returning "" when it is absent.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to a copy of v.
func Ptr(v string) *string {
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
