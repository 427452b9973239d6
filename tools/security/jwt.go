package security

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/zhihao1021/tjoy/tools/errs"
	"github.com/zhihao1021/tjoy/tools/ids"
)

// ErrUnauthorized is wrapped into every verification failure.
var ErrUnauthorized = errs.ErrUnauthorized

// Options 控制签名算法、密钥与 TTL。
// ES256 用 PEM 公私钥；HS* 用共享密钥。
type Options struct {
	Alg        string            // ES256 / HS256 / HS384 / HS512（默认 ES256）
	Secret     []byte            // HMAC 密钥
	PublicKey  *ecdsa.PublicKey  // 验签
	PrivateKey *ecdsa.PrivateKey // 签发（网关本身只验签，可为空）
	TTL        time.Duration     // 签发有效期（默认 2h）
	Leeway     time.Duration     // 时钟偏差容忍
}

type JWTClaims struct {
	jwtlib.MapClaims
}

// UserID reads the numeric subject.
func (c *JWTClaims) UserID() (ids.ID, error) {
	sub, err := c.GetSubject()
	if err != nil {
		return 0, err
	}
	if sub == "" {
		return 0, fmt.Errorf("missing sub")
	}
	return ids.Parse(sub)
}

// LoadECKeys reads PEM files; either path may be empty.
func LoadECKeys(publicPath, privatePath string) (*ecdsa.PublicKey, *ecdsa.PrivateKey, error) {
	var (
		pub  *ecdsa.PublicKey
		priv *ecdsa.PrivateKey
	)
	if publicPath != "" {
		b, err := os.ReadFile(publicPath)
		if err != nil {
			return nil, nil, errs.WrapMsg(err, "read public key", "path", publicPath)
		}
		if pub, err = jwtlib.ParseECPublicKeyFromPEM(b); err != nil {
			return nil, nil, errs.WrapMsg(err, "parse public key", "path", publicPath)
		}
	}
	if privatePath != "" {
		b, err := os.ReadFile(privatePath)
		if err != nil {
			return nil, nil, errs.WrapMsg(err, "read private key", "path", privatePath)
		}
		if priv, err = jwtlib.ParseECPrivateKeyFromPEM(b); err != nil {
			return nil, nil, errs.WrapMsg(err, "parse private key", "path", privatePath)
		}
		if pub == nil {
			pub = &priv.PublicKey
		}
	}
	return pub, priv, nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Sign issues a token whose subject is userID.
func Sign(opts Options, userID ids.ID) (token string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", time.Time{}, err
	}
	key, err := signKey(opts, method)
	if err != nil {
		return "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	tok := jwtlib.NewWithClaims(method, jwtlib.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and time claims.
func Verify(opts Options, token string) (*JWTClaims, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	key, err := verifyKey(opts, method)
	if err != nil {
		return nil, err
	}
	parsed, err := jwtlib.Parse(token,
		func(*jwtlib.Token) (interface{}, error) { return key, nil },
		jwtlib.WithValidMethods([]string{method.Alg()}),
		jwtlib.WithLeeway(opts.Leeway),
	)
	if err != nil {
		return nil, ErrUnauthorized.WrapMsg(err.Error())
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrUnauthorized.WrapMsg("invalid token")
	}
	return &JWTClaims{claims}, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "ES256":
		return jwtlib.SigningMethodES256, nil
	case "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use ES256/HS256/HS384/HS512)", alg)
	}
}

func signKey(opts Options, m jwtlib.SigningMethod) (interface{}, error) {
	if _, ok := m.(*jwtlib.SigningMethodECDSA); ok {
		if opts.PrivateKey == nil {
			return nil, fmt.Errorf("%s signing needs a private key", m.Alg())
		}
		return opts.PrivateKey, nil
	}
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("%s signing needs a secret", m.Alg())
	}
	return opts.Secret, nil
}

func verifyKey(opts Options, m jwtlib.SigningMethod) (interface{}, error) {
	if _, ok := m.(*jwtlib.SigningMethodECDSA); ok {
		if opts.PublicKey == nil {
			return nil, fmt.Errorf("%s verification needs a public key", m.Alg())
		}
		return opts.PublicKey, nil
	}
	if len(opts.Secret) == 0 {
		return nil, fmt.Errorf("%s verification needs a secret", m.Alg())
	}
	return opts.Secret, nil
}
