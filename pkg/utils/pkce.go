package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// GenerateCodeVerifier 生成 PKCE verifier
// 32 字节 crypto/rand，base64url 编码后 43 个字符
func GenerateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// GenerateCodeChallenge 基于 verifier 生成 S256 Challenge 字符串
// 算法：Base64UrlEncode(SHA256(ASCII(verifier)))
func GenerateCodeChallenge(verifier string) string {
	h := sha256.New()
	h.Write([]byte(verifier))
	// Etsy 要求使用 RawURLEncoding (不带填充符=)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// GenerateState 生成 OAuth state 参数
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
