package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blowfish"
)

// Backend is one implementation of the bcrypt algorithm family.
// Compare returns ErrMismatch for a well-formed hash that does not match;
// any other error means the backend could not do its job.
type Backend interface {
	Name() string
	Hash(password []byte, cost int) (string, error)
	Compare(hash string, password []byte) error
}

// ErrMismatch reports a valid hash that belongs to a different password.
var ErrMismatch = errors.New("password does not match hash")

// XCryptoBackend is the primary backend, golang.org/x/crypto/bcrypt.
type XCryptoBackend struct{}

func (XCryptoBackend) Name() string { return "x/crypto/bcrypt" }

func (XCryptoBackend) Hash(password []byte, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (XCryptoBackend) Compare(hash string, password []byte) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), password)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}

// BlowfishBackend computes bcrypt directly on the Blowfish primitives of
// golang.org/x/crypto/blowfish. Hashes are interchangeable with the primary
// backend and with $2a$/$2b$/$2y$ hashes produced elsewhere.
type BlowfishBackend struct {
	// Rand is the salt source; crypto/rand when nil.
	Rand io.Reader
}

const (
	bcryptAlphabet = "./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	bcryptSaltLen  = 16
	bcryptHashLen  = 60
	encodedSaltLen = 22
	cryptedLen     = 23 // of the 24 encrypted bytes only 23 are encoded
	minCost        = 4
	maxCost        = 31
)

var (
	bcryptEncoding = base64.NewEncoding(bcryptAlphabet).WithPadding(base64.NoPadding)
	magicCipher    = []byte("OrpheanBeholderScryDoubt")
)

func (BlowfishBackend) Name() string { return "x/crypto/blowfish" }

func (b BlowfishBackend) Hash(password []byte, cost int) (string, error) {
	if cost < minCost || cost > maxCost {
		return "", fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	r := b.Rand
	if r == nil {
		r = rand.Reader
	}
	salt := make([]byte, bcryptSaltLen)
	if _, err := io.ReadFull(r, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	encSalt := bcryptEncoding.EncodeToString(salt)
	sum, err := blowfishCrypt(password, cost, encSalt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("$2a$%02d$%s%s", cost, encSalt, sum), nil
}

func (BlowfishBackend) Compare(hash string, password []byte) error {
	cost, encSalt, want, err := parseBcrypt(hash)
	if err != nil {
		return err
	}
	got, err := blowfishCrypt(password, cost, encSalt)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrMismatch
	}
	return nil
}

// parseBcrypt splits "$2?$cc$<22 salt><31 hash>".
func parseBcrypt(hash string) (cost int, salt, sum string, err error) {
	if len(hash) != bcryptHashLen || hash[0] != '$' || hash[1] != '2' || hash[3] != '$' || hash[6] != '$' {
		return 0, "", "", errors.New("malformed bcrypt hash")
	}
	switch hash[2] {
	case 'a', 'b', 'y':
	default:
		return 0, "", "", errors.New("unsupported bcrypt version")
	}
	cost, err = strconv.Atoi(hash[4:6])
	if err != nil || cost < minCost || cost > maxCost {
		return 0, "", "", errors.New("invalid bcrypt cost")
	}
	return cost, hash[7 : 7+encodedSaltLen], hash[7+encodedSaltLen:], nil
}

func blowfishCrypt(password []byte, cost int, encSalt string) (string, error) {
	salt, err := bcryptEncoding.DecodeString(encSalt)
	if err != nil || len(salt) != bcryptSaltLen {
		return "", errors.New("invalid bcrypt salt")
	}
	// The key is NUL terminated, as in the reference C implementation.
	key := make([]byte, len(password)+1)
	copy(key, password)

	c, err := blowfish.NewSaltedCipher(key, salt)
	if err != nil {
		return "", err
	}
	rounds := uint64(1) << uint(cost)
	for i := uint64(0); i < rounds; i++ {
		blowfish.ExpandKey(key, c)
		blowfish.ExpandKey(salt, c)
	}

	data := make([]byte, len(magicCipher))
	copy(data, magicCipher)
	for i := 0; i < len(data); i += 8 {
		for j := 0; j < 64; j++ {
			c.Encrypt(data[i:i+8], data[i:i+8])
		}
	}
	return bcryptEncoding.EncodeToString(data[:cryptedLen]), nil
}
