package metadata

import (
	"time"

	"github.com/feral-file/batch-ledger/internal/domain"
	"github.com/feral-file/batch-ledger/internal/uri"
)

// Input holds the caller supplied fields of a new document
type Input struct {
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	ExternalURL     string           `json:"external_url,omitempty"`
	Attributes      []Attribute      `json:"attributes,omitempty"`
	BatchProperties *BatchProperties `json:"batch_properties,omitempty"`
}

// Build assembles and validates a document.
// imageRef may be empty, a URL, or the content address of an uploaded image.
func Build(input Input, imageRef string, createdAt time.Time) (*BatchMetadata, error) {
	doc := &BatchMetadata{
		Name:            input.Name,
		Description:     input.Description,
		Image:           imageURI(imageRef),
		Attributes:      input.Attributes,
		BatchProperties: input.BatchProperties,
		ExternalURL:     input.ExternalURL,
		CreatedAt:       createdAt.UTC().Truncate(time.Second),
		Version:         domain.METADATA_VERSION,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// imageURI turns a bare content address into an ipfs:// URI
func imageURI(ref string) string {
	if ref == "" || !uri.IsCID(ref) {
		return ref
	}
	return "ipfs://" + ref
}
