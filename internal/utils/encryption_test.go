package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

// TestEncryptDecrypt 测试加解密往返
func TestEncryptDecrypt(t *testing.T) {
	plaintext := "sensitive permit data"

	ciphertext, err := Encrypt(plaintext, testKey)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(ciphertext, testKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

// TestEncrypt_KeyTooShort 密钥过短被拒绝
func TestEncrypt_KeyTooShort(t *testing.T) {
	_, err := Encrypt("data", "short-key")
	assert.Error(t, err)

	_, err = Decrypt("data", "short-key")
	assert.Error(t, err)
}

// TestDecrypt_WrongKey 错误密钥解密失败
func TestDecrypt_WrongKey(t *testing.T) {
	ciphertext, err := Encrypt("data", testKey)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, "another-key-that-is-32-bytes-long!!")
	assert.Error(t, err)
}

// TestDecrypt_InvalidInput 非法密文
func TestDecrypt_InvalidInput(t *testing.T) {
	_, err := Decrypt("not-base64!!!", testKey)
	assert.Error(t, err)

	_, err = Decrypt("YQ==", testKey) // 比 nonce 还短
	assert.Error(t, err)
}

// TestSignatureDigest 签名摘要稳定且不可逆
func TestSignatureDigest(t *testing.T) {
	digest := SignatureDigest("signature-image-bytes")
	assert.NotEmpty(t, digest)
	assert.NotEqual(t, "signature-image-bytes", digest)

	// 同输入同摘要
	assert.Equal(t, digest, SignatureDigest("signature-image-bytes"))
	// 不同输入不同摘要
	assert.NotEqual(t, digest, SignatureDigest("other-signature"))
	// 空签名返回空摘要
	assert.Empty(t, SignatureDigest(""))
}

// TestHashVerifySecret 共享密钥哈希与校验
func TestHashVerifySecret(t *testing.T) {
	hashed, err := HashSecret("webhook-shared-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "webhook-shared-secret", hashed)

	assert.True(t, VerifySecret("webhook-shared-secret", hashed))
	assert.False(t, VerifySecret("wrong-secret", hashed))
}
