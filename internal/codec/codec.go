// Package codec encodes and decodes record payloads using the solagram
// program's account ABI: an 8-byte type discriminator followed by
// little-endian fields, strings u32-length-prefixed.
package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	xerrors "github.com/amitsaini144/solagram/internal/errors"
	"github.com/amitsaini144/solagram/internal/model"
)

// DiscriminatorLength is the byte length of the payload type discriminator.
const DiscriminatorLength = 8

// Record kind names. They feed the discriminator derivation and must match
// the program's account names exactly.
const (
	KindProfile = "profile"
	KindPost    = "post"
	KindComment = "comment"
	KindFollow  = "follow"
)

// Discriminator is the fixed-size type tag prefixing every stored payload.
type Discriminator [DiscriminatorLength]byte

// DiscriminatorFor derives the discriminator for a record kind:
// SHA-256("solagram:account:" + kind)[0:8].
func DiscriminatorFor(kind string) Discriminator {
	var d Discriminator
	sum := sha256.Sum256([]byte("solagram:account:" + kind))
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// Pre-derived discriminators for the four record kinds.
var (
	ProfileDiscriminator = DiscriminatorFor(KindProfile)
	PostDiscriminator    = DiscriminatorFor(KindPost)
	CommentDiscriminator = DiscriminatorFor(KindComment)
	FollowDiscriminator  = DiscriminatorFor(KindFollow)
)

// Payload offsets of fields scan filters match on. The authority identity
// directly follows the discriminator in every record kind; the comment's
// post address follows its authority.
const (
	AuthorityOffset   = DiscriminatorLength
	CommentPostOffset = DiscriminatorLength + model.IdentityLength
)

// DecodeProfile decodes a profile record payload.
func DecodeProfile(payload []byte) (model.Profile, error) {
	var p model.Profile
	r, err := newReader(KindProfile, payload, ProfileDiscriminator)
	if err != nil {
		return p, err
	}
	p.Authority, err = r.identity()
	if err == nil {
		p.Handle, err = r.str()
	}
	if err == nil {
		p.Bio, err = r.str()
	}
	if err == nil {
		p.AvatarURL, err = r.str()
	}
	if err == nil {
		p.Followers, err = r.u64()
	}
	if err == nil {
		p.Following, err = r.u64()
	}
	if err == nil {
		p.Posts, err = r.u64()
	}
	if err == nil {
		p.CreatedAt, err = r.i64()
	}
	if err == nil {
		p.UpdatedAt, err = r.i64()
	}
	if err == nil {
		err = r.done()
	}
	if err != nil {
		return model.Profile{}, xerrors.NewDecode(KindProfile, err)
	}
	return p, nil
}

// DecodePost decodes a post record payload.
func DecodePost(payload []byte) (model.Post, error) {
	var p model.Post
	r, err := newReader(KindPost, payload, PostDiscriminator)
	if err != nil {
		return p, err
	}
	p.Authority, err = r.identity()
	if err == nil {
		p.Content, err = r.str()
	}
	if err == nil {
		p.Likes, err = r.u64()
	}
	if err == nil {
		p.Comments, err = r.u64()
	}
	if err == nil {
		p.CreatedAt, err = r.i64()
	}
	if err == nil {
		p.UpdatedAt, err = r.i64()
	}
	if err == nil {
		err = r.done()
	}
	if err != nil {
		return model.Post{}, xerrors.NewDecode(KindPost, err)
	}
	return p, nil
}

// DecodeComment decodes a comment record payload.
func DecodeComment(payload []byte) (model.Comment, error) {
	var c model.Comment
	r, err := newReader(KindComment, payload, CommentDiscriminator)
	if err != nil {
		return c, err
	}
	c.Authority, err = r.identity()
	if err == nil {
		c.Post, err = r.address()
	}
	if err == nil {
		c.Content, err = r.str()
	}
	if err == nil {
		c.CreatedAt, err = r.i64()
	}
	if err == nil {
		err = r.done()
	}
	if err != nil {
		return model.Comment{}, xerrors.NewDecode(KindComment, err)
	}
	return c, nil
}

// DecodeFollowEdge decodes a follow edge record payload.
func DecodeFollowEdge(payload []byte) (model.FollowEdge, error) {
	var f model.FollowEdge
	r, err := newReader(KindFollow, payload, FollowDiscriminator)
	if err != nil {
		return f, err
	}
	f.Follower, err = r.identity()
	if err == nil {
		f.Target, err = r.identity()
	}
	if err == nil {
		f.CreatedAt, err = r.i64()
	}
	if err == nil {
		err = r.done()
	}
	if err != nil {
		return model.FollowEdge{}, xerrors.NewDecode(KindFollow, err)
	}
	return f, nil
}

// EncodeProfile encodes a profile record payload.
func EncodeProfile(p model.Profile) []byte {
	e := newEncoder(ProfileDiscriminator)
	e.identity(p.Authority)
	e.str(p.Handle)
	e.str(p.Bio)
	e.str(p.AvatarURL)
	e.u64(p.Followers)
	e.u64(p.Following)
	e.u64(p.Posts)
	e.i64(p.CreatedAt)
	e.i64(p.UpdatedAt)
	return e.bytes()
}

// EncodePost encodes a post record payload.
func EncodePost(p model.Post) []byte {
	e := newEncoder(PostDiscriminator)
	e.identity(p.Authority)
	e.str(p.Content)
	e.u64(p.Likes)
	e.u64(p.Comments)
	e.i64(p.CreatedAt)
	e.i64(p.UpdatedAt)
	return e.bytes()
}

// EncodeComment encodes a comment record payload.
func EncodeComment(c model.Comment) []byte {
	e := newEncoder(CommentDiscriminator)
	e.identity(c.Authority)
	e.address(c.Post)
	e.str(c.Content)
	e.i64(c.CreatedAt)
	return e.bytes()
}

// EncodeFollowEdge encodes a follow edge record payload.
func EncodeFollowEdge(f model.FollowEdge) []byte {
	e := newEncoder(FollowDiscriminator)
	e.identity(f.Follower)
	e.identity(f.Target)
	e.i64(f.CreatedAt)
	return e.bytes()
}

// reader walks a payload after the discriminator has been verified.
type reader struct {
	buf []byte
	off int
}

// newReader verifies the discriminator and positions the reader after it.
// A short payload or mismatched discriminator is a DecodeError.
func newReader(kind string, payload []byte, want Discriminator) (*reader, error) {
	if len(payload) < DiscriminatorLength {
		return nil, xerrors.NewDecode(kind, fmt.Errorf("payload %d bytes, shorter than discriminator", len(payload)))
	}
	var got Discriminator
	copy(got[:], payload[:DiscriminatorLength])
	if got != want {
		return nil, xerrors.NewDecode(kind, fmt.Errorf("discriminator mismatch: got %x, want %x", got, want))
	}
	return &reader{buf: payload, off: DiscriminatorLength}, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("truncated payload: need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) identity() (model.Identity, error) {
	b, err := r.take(model.IdentityLength)
	if err != nil {
		return model.Identity{}, err
	}
	return model.IdentityFromBytes(b)
}

func (r *reader) address() (model.Address, error) {
	b, err := r.take(model.AddressLength)
	if err != nil {
		return model.Address{}, err
	}
	return model.AddressFromBytes(b)
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) str() (string, error) {
	lb, err := r.take(4)
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lb)
	if int(n) > len(r.buf)-r.off {
		return "", fmt.Errorf("string length %d exceeds remaining payload %d", n, len(r.buf)-r.off)
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// done reports trailing garbage after the last field.
func (r *reader) done() error {
	if r.off != len(r.buf) {
		return fmt.Errorf("%d trailing bytes after last field", len(r.buf)-r.off)
	}
	return nil
}

// encoder builds a payload, discriminator first.
type encoder struct {
	buf []byte
}

func newEncoder(d Discriminator) *encoder {
	return &encoder{buf: append([]byte(nil), d[:]...)}
}

func (e *encoder) identity(id model.Identity) { e.buf = append(e.buf, id[:]...) }
func (e *encoder) address(a model.Address)    { e.buf = append(e.buf, a[:]...) }

func (e *encoder) u64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) i64(v int64) { e.u64(uint64(v)) }

func (e *encoder) str(s string) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) bytes() []byte { return e.buf }

// AppendString appends a u32-length-prefixed string to b, the encoding used
// for instruction argument payloads.
func AppendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}
