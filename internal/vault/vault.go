package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
// 卡数据加密（Credential Vault）
// ============================================================================
//
// 每个用户注册时生成一把 32 字节对称密钥，保存的卡号和 CVV 用该密钥
// 以 AES-256-GCM 分别加密为独立密文。
//
// 【关键点】两段密文通过 GCM 附加数据（AAD）绑定到 用户ID + 配对标签 + 字段名，
// 攻击者无法把 A 卡的卡号密文和 B 卡的 CVV 密文拼成一张"新卡"，
// 也无法把别的用户的密文搬到自己名下。
//
// 【关键点】解密必须 fail closed：密钥不对、密文损坏、AAD 不匹配，
// 一律返回"无数据"，绝不把底层解码错误抛到 HTTP 边界。
//
// ============================================================================

const keyBytes = 32 // AES-256

var ErrInvalidKey = errors.New("加密密钥不合法")

// 字段名常量，用于 AAD 绑定
const (
	FieldCardNumber = "card_number"
	FieldCVV        = "cvv"
)

// GenerateKey 生成一把新的用户密钥（base64 编码）
// 注册时调用一次，随用户记录保存
func GenerateKey() (string, error) {
	key := make([]byte, keyBytes)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("生成密钥失败: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// aad 组装 GCM 附加数据：用户ID + 配对标签 + 字段名
func aad(userID int64, pairTag, field string) []byte {
	return []byte(fmt.Sprintf("%d:%s:%s", userID, pairTag, field))
}

// Encrypt 加密单个字段
// 返回 base64(nonce || 密文)
func Encrypt(plaintext, encodedKey string, userID int64, pairTag, field string) (string, error) {
	gcm, err := newGCM(encodedKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("生成 nonce 失败: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), aad(userID, pairTag, field))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密单个字段
// 任何失败（密钥错误、密文损坏、AAD 不匹配）都返回 ("", false)
func Decrypt(ciphertext, encodedKey string, userID int64, pairTag, field string) (string, bool) {
	gcm, err := newGCM(encodedKey)
	if err != nil {
		return "", false
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", false
	}

	if len(raw) < gcm.NonceSize() {
		return "", false
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, aad(userID, pairTag, field))
	if err != nil {
		return "", false
	}
	return string(plaintext), true
}

func newGCM(encodedKey string) (cipher.AEAD, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, ErrInvalidKey
	}
	if len(key) != keyBytes {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKey
	}

	return cipher.NewGCM(block)
}
