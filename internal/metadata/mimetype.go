package metadata

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feral-file/batch-ledger/internal/domain"
)

// MaxImageSize bounds the image uploaded with a new batch
const MaxImageSize = 10 << 20

// DetectImageType sniffs the MIME type of an image upload.
// Anything that is not an image is rejected.
func DetectImageType(data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, domain.NewLedgerError(domain.ErrInvalidArgument, "uploadImage", fmt.Errorf("image is empty"))
	}
	if len(data) > MaxImageSize {
		return nil, domain.NewLedgerError(domain.ErrInvalidArgument, "uploadImage", fmt.Errorf("image is larger than %d bytes", MaxImageSize))
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, domain.NewLedgerError(domain.ErrInvalidArgument, "uploadImage", fmt.Errorf("unsupported image type %s", mtype.String()))
	}
	return mtype, nil
}
