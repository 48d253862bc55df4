package cdpapi

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	xerrors "walrus-agent/internal/errors"
)

// tokenTTL 是 CDP 接受的 JWT 最长有效期。
const tokenTTL = 2 * time.Minute

// signer 使用 CDP API 密钥为每个请求签发 JWT。
type signer struct {
	keyID  string
	key    crypto.PrivateKey
	method jwt.SigningMethod
	now    func() time.Time
}

// newSigner 解析 API 私钥，支持 PEM 编码的 EC 私钥与 base64 编码的 Ed25519 私钥。
func newSigner(keyID, secret string, now func() time.Time) (*signer, error) {
	keyID = strings.TrimSpace(keyID)
	secret = strings.TrimSpace(strings.ReplaceAll(secret, `\n`, "\n"))
	if keyID == "" || secret == "" {
		return nil, nil
	}
	if now == nil {
		now = time.Now
	}

	s := &signer{keyID: keyID, now: now}
	if strings.Contains(secret, "-----BEGIN") {
		key, err := jwt.ParseECPrivateKeyFromPEM([]byte(secret))
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "解析 CDP EC 私钥失败")
		}
		s.key, s.method = key, jwt.SigningMethodES256
		return s, nil
	}

	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "解析 CDP Ed25519 私钥失败")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "CDP Ed25519 私钥长度无效")
	}
	s.key, s.method = ed25519.PrivateKey(raw), jwt.SigningMethodEdDSA
	return s, nil
}

// token 签发绑定到 "METHOD host/path" 的短期 JWT。
func (s *signer) token(method, host, path string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":  s.keyID,
		"iss":  "cdp",
		"nbf":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
		"uris": []string{method + " " + host + path},
	}
	tok := jwt.NewWithClaims(s.method, claims)
	tok.Header["kid"] = s.keyID
	tok.Header["nonce"] = hex.EncodeToString(nonce)
	return tok.SignedString(s.key)
}
