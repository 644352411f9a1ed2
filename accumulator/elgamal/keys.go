package elgamal

import (
	"encoding/hex"
	"os"
	"strings"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// KeyPair is the key pair of a decryption facility.
type KeyPair struct {
	Secret kyber.Scalar
	Public kyber.Point
}

// NewKeyPair returns a fresh random key pair.
func NewKeyPair() KeyPair {
	secret := suite.Scalar().Pick(suite.RandomStream())

	return KeyPair{
		Secret: secret,
		Public: suite.Point().Mul(secret, nil),
	}
}

// LoadOrCreateKey reads the hex-encoded secret from the file, or creates a new
// key pair and writes it when the file does not exist.
func LoadOrCreateKey(path string) (KeyPair, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		kp := NewKeyPair()

		buf, err := kp.Secret.MarshalBinary()
		if err != nil {
			return kp, xerrors.Errorf("failed to marshal secret: %v", err)
		}

		err = os.WriteFile(path, []byte(hex.EncodeToString(buf)), 0600)
		if err != nil {
			return kp, xerrors.Errorf("failed to write key: %v", err)
		}

		return kp, nil
	}

	if err != nil {
		return KeyPair{}, xerrors.Errorf("failed to read key: %v", err)
	}

	buf, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return KeyPair{}, xerrors.Errorf("failed to decode key: %v", err)
	}

	secret := suite.Scalar()

	err = secret.UnmarshalBinary(buf)
	if err != nil {
		return KeyPair{}, xerrors.Errorf("failed to unmarshal secret: %v", err)
	}

	kp := KeyPair{
		Secret: secret,
		Public: suite.Point().Mul(secret, nil),
	}

	return kp, nil
}

// EncodePublic returns the hex encoding of a public key.
func EncodePublic(pub kyber.Point) string {
	return pub.String()
}

// DecodePublic returns the public key of its hex encoding.
func DecodePublic(text string) (kyber.Point, error) {
	buf, err := hex.DecodeString(text)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode: %v", err)
	}

	pub := suite.Point()

	err = pub.UnmarshalBinary(buf)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal point: %v", err)
	}

	return pub, nil
}
