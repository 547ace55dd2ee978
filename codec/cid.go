package codec

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
)

// ErrIntegrityViolation is returned by Verify when the supplied bytes do
// not hash to the CID they are claimed to represent.
var ErrIntegrityViolation = errors.New("codec: content does not match its CID")

// ComputeCID returns the CIDv0 (base58 multihash of sha2-256) of encoded,
// the content-addressing scheme used for both Chapter files and, via
// Manifest.CID, the Manifest itself.
func ComputeCID(encoded []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(encoded, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "codec: hashing content")
	}
	return cid.NewCidV0(mh), nil
}

// ParseCID parses a CIDv0 base58 string as read back from a Manifest.
func ParseCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, errors.Wrapf(err, "codec: parsing cid %q", s)
	}
	return c, nil
}

// Verify recomputes the CID of encoded and compares it against want,
// returning ErrIntegrityViolation on mismatch. This is the one
// non-optional check in the retrieval path: a publisher that lies about
// a Chapter's hash must never be trusted silently.
func Verify(encoded []byte, want cid.Cid) error {
	got, err := ComputeCID(encoded)
	if err != nil {
		return err
	}
	if !got.Equals(want) {
		return errors.Wrapf(ErrIntegrityViolation, "got %s, manifest says %s", got, want)
	}
	return nil
}
