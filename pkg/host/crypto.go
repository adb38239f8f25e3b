package host

import (
	"crypto/sha256"
	"hash"

	"github.com/fortiblox/zforth/internal/types"
	"github.com/fortiblox/zforth/pkg/image"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Hash syscall numbers.
const (
	SysSha256    = Word(30)
	SysKeccak256 = Word(31)
	SysBlake3    = Word(32)
)

// digestWord folds a digest into one word: its first WordBytes bytes,
// little-endian.
func digestWord(sum []byte) Word {
	return types.GetWord(sum[:types.WordBytes])
}

// hashString returns a syscall ( str -- h ) hashing the string's bytes.
func hashString(newHash func() hash.Hash) SyscallFunc {
	return func(img *image.Image, _ interface{}) (Word, error) {
		addr, err := img.PopData()
		if err != nil {
			return 0, err
		}
		s, err := img.String(addr)
		if err != nil {
			return 0, err
		}
		h := newHash()
		h.Write(s)
		return 0, img.PushData(digestWord(h.Sum(nil)))
	}
}

// registerCrypto registers the string hashing syscalls.
func (r *Registry) registerCrypto() {
	r.Register(SysSha256, "sys.sha256", hashString(sha256.New))
	r.Register(SysKeccak256, "sys.keccak256", hashString(sha3.NewLegacyKeccak256))
	r.Register(SysBlake3, "sys.blake3", hashString(func() hash.Hash { return blake3.New() }))
}
