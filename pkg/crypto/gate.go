// Package crypto 提供转写文本的落盘加解密
//
// 令牌格式为 Fernet（AES-128-CBC + HMAC-SHA256），与 Python cryptography.fernet 互通。
// 明文在加密前可选 zlib 压缩；解密时先尝试解压，失败再按原始 UTF-8 文本解码，
// 以兼容引入压缩之前写入的记录。
package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fernet/fernet-go"
	"github.com/klauspost/compress/zlib"
)

var (
	// ErrInvalidKey 密钥格式错误
	ErrInvalidKey = errors.New("crypto: invalid fernet key")
	// ErrInvalidToken 令牌被篡改、使用其他密钥加密或格式错误
	ErrInvalidToken = errors.New("crypto: invalid or tampered token")
	// ErrInvalidPlaintext 解密结果既不是 zlib 流也不是合法 UTF-8
	ErrInvalidPlaintext = errors.New("crypto: decrypted payload is not valid text")
)

// noExpiry 负值表示不校验令牌时效
const noExpiry = -1 * time.Second

// Gate 对称加解密网关，进程启动时加载一次密钥
type Gate struct {
	keys     []*fernet.Key
	compress bool
}

// Option Gate 配置项
type Option func(*Gate)

// WithCompression 设置加密前是否压缩明文
func WithCompression(enabled bool) Option {
	return func(g *Gate) {
		g.compress = enabled
	}
}

// NewGate 创建加解密网关
// key 为 URL-safe base64 编码的 32 字节密钥；逗号分隔多个密钥时第一个用于加密，其余仅用于解密
func NewGate(key string, opts ...Option) (*Gate, error) {
	var encoded []string
	for _, k := range strings.Split(key, ",") {
		if k = strings.TrimSpace(k); k != "" {
			encoded = append(encoded, k)
		}
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}

	keys, err := fernet.DecodeKeys(encoded...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	g := &Gate{keys: keys, compress: true}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateKey 生成新的随机密钥（URL-safe base64）
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

// Encrypt 加密明文，返回令牌字符串
func (g *Gate) Encrypt(plaintext string) (string, error) {
	payload := []byte(plaintext)
	if g.compress {
		compressed, err := compress(payload)
		if err != nil {
			return "", err
		}
		payload = compressed
	}

	tok, err := fernet.EncryptAndSign(payload, g.keys[0])
	if err != nil {
		return "", fmt.Errorf("crypto: encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt 校验并解密令牌
func (g *Gate) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(strings.TrimSpace(token)), noExpiry, g.keys)
	if msg == nil {
		return "", ErrInvalidToken
	}

	if text, err := decompress(msg); err == nil {
		return text, nil
	}
	return decodePlain(msg)
}

// compress zlib 压缩
func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("crypto: compress: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("crypto: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("crypto: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// decompress 压缩路径：完整解出 zlib 流并校验为 UTF-8
func decompress(b []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", ErrInvalidPlaintext
	}
	return string(out), nil
}

// decodePlain 兼容路径：未压缩的历史记录
func decodePlain(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrInvalidPlaintext
	}
	return string(b), nil
}
