// Package derive computes storage addresses for solagram records. The
// derivation is the same rule the ledger program applies on-chain, so both
// sides always agree on where a record lives without any lookup index.
package derive

import (
	"crypto/sha256"

	"github.com/amitsaini144/solagram/internal/model"
)

// Seed tags. These are part of the on-chain derivation rule and must never
// change for a deployed program.
const (
	tagProfile = "profile"
	tagPost    = "post"
	tagComment = "comment"
	tagFollow  = "follow"
)

// DigestLength is the byte length of a content digest seed.
const DigestLength = 4

// ContentDigest is the short digest of a record's primary content field.
// Including it in the seed set makes creation idempotent: re-submitting
// identical content from the same owner re-derives the same address, while
// different content derives a distinct one.
type ContentDigest [DigestLength]byte

// DigestContent computes the content digest: the first DigestLength bytes
// of SHA-256 over the content.
func DigestContent(content string) ContentDigest {
	var d ContentDigest
	sum := sha256.Sum256([]byte(content))
	copy(d[:], sum[:DigestLength])
	return d
}

// Deriver derives storage addresses scoped to one ledger program. It is
// pure: no I/O, no state beyond the program identity, and derivation never
// fails for well-formed inputs.
type Deriver struct {
	program model.Identity
}

// NewDeriver creates a Deriver for the given program identity.
func NewDeriver(program model.Identity) *Deriver {
	return &Deriver{program: program}
}

// Program returns the program identity this deriver is scoped to.
func (d *Deriver) Program() model.Identity { return d.program }

// ProfileAddress derives the profile record address for an owner.
func (d *Deriver) ProfileAddress(owner model.Identity) model.Address {
	return d.derive(tagProfile, owner[:])
}

// PostAddress derives the post record address for an owner and the digest
// of the post content.
func (d *Deriver) PostAddress(owner model.Identity, digest ContentDigest) model.Address {
	return d.derive(tagPost, owner[:], digest[:])
}

// CommentAddress derives the comment record address. The post address
// participates in the seed set so the same text on two posts derives two
// distinct addresses.
func (d *Deriver) CommentAddress(owner model.Identity, post model.Address, digest ContentDigest) model.Address {
	return d.derive(tagComment, owner[:], post[:], digest[:])
}

// FollowAddress derives the follow edge address for the ordered pair
// (actor, target). Order matters: FollowAddress(a, b) != FollowAddress(b, a).
func (d *Deriver) FollowAddress(actor, target model.Identity) model.Address {
	return d.derive(tagFollow, actor[:], target[:])
}

// derive hashes program ‖ tag ‖ seeds into an address.
func (d *Deriver) derive(tag string, seeds ...[]byte) model.Address {
	h := sha256.New()
	h.Write(d.program[:])
	h.Write([]byte(tag))
	for _, s := range seeds {
		h.Write(s)
	}
	var addr model.Address
	copy(addr[:], h.Sum(nil))
	return addr
}
