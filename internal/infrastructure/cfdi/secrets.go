package cfdi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// SecretProvider cifra y descifra la contraseña de la llave privada del CSD.
// La derivación de llave queda detrás de esta interfaz para poder sustituirla
// por un almacén de secretos administrado sin tocar el código de sellado.
type SecretProvider interface {
	EncryptPassphrase(plain string) ([]byte, error)
	DecryptPassphrase(enc []byte) (string, error)
}

// AESSecretProvider implementación con AES-256-GCM; la llave se deriva del
// secreto de aplicación (variable de entorno) con PBKDF2-SHA256.
type AESSecretProvider struct {
	key []byte
}

const pbkdf2Iterations = 4096

// NewAESSecretProvider deriva la llave simétrica del secreto de aplicación.
// El secreto nunca se registra en logs ni se persiste.
func NewAESSecretProvider(appSecret, salt string) (*AESSecretProvider, error) {
	if appSecret == "" {
		return nil, fmt.Errorf("secrets: APP_SECRET vacío")
	}
	key := pbkdf2.Key([]byte(appSecret), []byte(salt), pbkdf2Iterations, 32, sha256.New)
	return &AESSecretProvider{key: key}, nil
}

// EncryptPassphrase cifra la contraseña; el nonce va como prefijo del cifrado.
func (p *AESSecretProvider) EncryptPassphrase(plain string) ([]byte, error) {
	gcm, err := p.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secrets: generar nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, []byte(plain), nil), nil
}

// DecryptPassphrase descifra la contraseña guardada.
func (p *AESSecretProvider) DecryptPassphrase(enc []byte) (string, error) {
	gcm, err := p.gcm()
	if err != nil {
		return "", err
	}
	if len(enc) < gcm.NonceSize() {
		return "", fmt.Errorf("secrets: cifrado truncado")
	}
	nonce, ciphertext := enc[:gcm.NonceSize()], enc[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: descifrar contraseña: %w", err)
	}
	return string(plain), nil
}

func (p *AESSecretProvider) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, fmt.Errorf("secrets: inicializar AES: %w", err)
	}
	return cipher.NewGCM(block)
}
