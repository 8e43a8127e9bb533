package model

// Doc is a raw document as it comes out of the store: a map keyed by field
// name, with the storage id already normalized to a hex string under "id".
// Fields ending in Id/Ids hold hex string references to other documents.
type Doc map[string]interface{}

// ID returns the document id, or "" if the doc has none.
func (d Doc) ID() string {
	id, _ := d["id"].(string)
	return id
}

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one mutation observed on a collection. Exactly one of
// DocBefore/DocAfter may be nil: inserts only carry an after image, deletes
// only a before image, updates carry both.
type Change[T any] struct {
	Type      ChangeType `json:"type"`
	DocID     string     `json:"docId"`
	DocBefore *T         `json:"docBefore,omitempty"`
	DocAfter  *T         `json:"docAfter,omitempty"`
}

// Doc returns whichever image is present, preferring the after image.
func (c Change[T]) Doc() *T {
	if c.DocAfter != nil {
		return c.DocAfter
	}
	return c.DocBefore
}
