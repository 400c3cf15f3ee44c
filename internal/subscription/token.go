package subscription

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenByteLength は確認トークンの乱数バイト長。
// base64urlエンコード後は43文字になる。
const tokenByteLength = 32

// generateToken は暗号論的乱数から確認トークンを生成する。
// URLセーフなbase64（パディングなし）でエンコードされた文字列を返す。
func generateToken() (string, error) {
	b := make([]byte, tokenByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("トークン乱数の生成に失敗しました: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
