package security

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/zhihao1021/tjoy/tools/ids"
)

func newECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return k
}

func TestES256_SignAndResolve(t *testing.T) {
	req := require.New(t)
	k := newECKey(t)
	opts := Options{Alg: "ES256", PrivateKey: k, PublicKey: &k.PublicKey, TTL: time.Minute}

	token, exp, err := Sign(opts, ids.ID(6209533852516352))
	req.NoError(err)
	req.WithinDuration(time.Now().Add(time.Minute), exp, 2*time.Second)

	r, err := NewResolver(Options{PublicKey: &k.PublicKey})
	req.NoError(err)
	uid, err := r.Authenticate(context.Background(), token)
	req.NoError(err)
	req.Equal(ids.ID(6209533852516352), uid)
}

func TestVerify_RejectsWrongKeyAndAlg(t *testing.T) {
	req := require.New(t)
	k := newECKey(t)
	other := newECKey(t)

	token, _, err := Sign(Options{PrivateKey: k}, 1)
	req.NoError(err)

	_, err = Verify(Options{PublicKey: &other.PublicKey}, token)
	req.ErrorIs(err, ErrUnauthorized)

	// an HS256 token must not pass an ES256 verifier
	hs, _, err := Sign(Options{Alg: "HS256", Secret: []byte("s3cret")}, 1)
	req.NoError(err)
	_, err = Verify(Options{PublicKey: &k.PublicKey}, hs)
	req.ErrorIs(err, ErrUnauthorized)
}

func TestHS256_Expired(t *testing.T) {
	req := require.New(t)
	opts := Options{Alg: "HS256", Secret: []byte("s3cret")}

	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	expired, err := tok.SignedString(opts.Secret)
	req.NoError(err)

	_, err = Verify(opts, expired)
	req.ErrorIs(err, ErrUnauthorized)

	opts.Leeway = 2 * time.Minute
	claims, err := Verify(opts, expired)
	req.NoError(err)
	uid, err := claims.UserID()
	req.NoError(err)
	req.Equal(ids.ID(7), uid)
}

func TestResolver_BadSubject(t *testing.T) {
	req := require.New(t)
	secret := []byte("s3cret")
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"sub": "alice"})
	s, err := tok.SignedString(secret)
	req.NoError(err)

	r, err := NewResolver(Options{Alg: "HS256", Secret: secret})
	req.NoError(err)
	_, err = r.Authenticate(context.Background(), s)
	req.ErrorIs(err, ErrUnauthorized)

	_, err = r.Authenticate(context.Background(), "not.a.jwt")
	req.ErrorIs(err, ErrUnauthorized)
}

func TestNewResolver_NeedsKey(t *testing.T) {
	_, err := NewResolver(Options{Alg: "ES256"})
	require.Error(t, err)
	_, err = NewResolver(Options{Alg: "RS256", Secret: []byte("x")})
	require.Error(t, err)
}

func TestLoadECKeys(t *testing.T) {
	req := require.New(t)
	k := newECKey(t)
	dir := t.TempDir()

	privDER, err := x509.MarshalECPrivateKey(k)
	req.NoError(err)
	pubDER, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	req.NoError(err)
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	req.NoError(os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER}), 0o600))
	req.NoError(os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	pub, priv, err := LoadECKeys(pubPath, privPath)
	req.NoError(err)
	req.True(pub.Equal(&k.PublicKey))
	req.True(priv.Equal(k))

	// private alone also yields the public half
	pub, _, err = LoadECKeys("", privPath)
	req.NoError(err)
	req.True(pub.Equal(&k.PublicKey))

	_, _, err = LoadECKeys(filepath.Join(dir, "missing.pem"), "")
	req.Error(err)
}

func TestHashToken(t *testing.T) {
	require.Equal(t, HashToken("a"), HashToken("a"))
	require.NotEqual(t, HashToken("a"), HashToken("b"))
	require.Contains(t, HashToken("a"), "sha256:")
}
