package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"mcw/internal/model"

	"golang.org/x/crypto/scrypt"
)

// Well-known store keys. Values are strings (JSON-serialized where
// structured); the secret key is stored base64-encoded.
const (
	KeyRecoveryPhrase = "recoveryPhrase"
	KeySecretKey      = "secretKey"
	KeyPublicAddress  = "publicAddress"
	KeyInitialized    = "initialized"
	KeyLastTxTime     = "lastTxTime"
	KeyTxHistory      = "txHistory"
)

const (
	// scrypt parameters
	//
	// N=2^18 (~256MB RAM, 0.5-2s) - optimal balance:
	//   - Maximum security while remaining compatible with mobile devices
	//   - Works on phones (4-16GB RAM) and desktops alike
	//   - Brute-force attacks remain extremely expensive
	//
	// Note: N=2^20 (~1GB) offers the highest security but fails on mobile due to
	// Android memory limits per app (~256-512MB typically)
	scryptN      = 1 << 18
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12
)

// file is the on-disk structure.
type file struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipherText"`
}

// Vault is an encrypted, file-backed key-value store for wallet secrets.
// The scrypt-derived AES key is computed once at Open and held in memory
// for the process lifetime; every write reseals the whole map with a
// fresh nonce.
type Vault struct {
	mu   sync.Mutex
	path string
	key  []byte
	salt []byte
}

// Open unlocks the store at path, creating an empty one if the file does
// not exist. password must be []byte for security (caller should zero it
// after use).
func Open(path string, password []byte) (*Vault, error) {
	info, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, &model.PersistenceError{Op: "open", Err: err}
	}

	v := &Vault{path: path}

	if err == nil && info.Size() > 0 {
		// Existing store: recover the salt, derive the key, verify the
		// password by decrypting once.
		f, err := v.readFile()
		if err != nil {
			return nil, err
		}
		v.salt, err = base64.StdEncoding.DecodeString(f.Salt)
		if err != nil {
			return nil, &model.PersistenceError{Op: "open", Err: fmt.Errorf("failed to decode salt: %w", err)}
		}
		v.key, err = scrypt.Key(password, v.salt, scryptN, scryptR, scryptP, scryptKeyLen)
		if err != nil {
			return nil, &model.PersistenceError{Op: "open", Err: fmt.Errorf("failed to derive key: %w", err)}
		}
		if _, err := v.decrypt(f); err != nil {
			return nil, err
		}
		return v, nil
	}

	// New store
	v.salt = make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, v.salt); err != nil {
		return nil, &model.PersistenceError{Op: "open", Err: fmt.Errorf("failed to generate salt: %w", err)}
	}
	v.key, err = scrypt.Key(password, v.salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, &model.PersistenceError{Op: "open", Err: fmt.Errorf("failed to derive key: %w", err)}
	}
	if err := v.write(map[string]string{}); err != nil {
		return nil, err
	}
	return v, nil
}

// Close wipes the derived key from memory.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.key)
	v.key = nil
}

// Get returns the value for key and whether it was present.
func (v *Vault) Get(key string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.read()
	if err != nil {
		return "", false, err
	}
	val, ok := m[key]
	return val, ok, nil
}

// Set stores value under key. The write is durable before Set returns;
// callers may rely on it for ordering (e.g. the key write before a send).
func (v *Vault) Set(key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.read()
	if err != nil {
		return err
	}
	m[key] = value
	return v.write(m)
}

// Delete removes key from the store. Deleting an absent key is a no-op.
func (v *Vault) Delete(key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.read()
	if err != nil {
		return err
	}
	delete(m, key)
	return v.write(m)
}

func (v *Vault) read() (map[string]string, error) {
	f, err := v.readFile()
	if err != nil {
		return nil, err
	}
	return v.decrypt(f)
}

func (v *Vault) readFile() (*file, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return nil, &model.PersistenceError{Op: "read", Err: err}
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &model.PersistenceError{Op: "read", Err: fmt.Errorf("failed to unmarshal store file: %w", err)}
	}
	return &f, nil
}

func (v *Vault) decrypt(f *file) (map[string]string, error) {
	nonce, err := base64.StdEncoding.DecodeString(f.Nonce)
	if err != nil {
		return nil, &model.PersistenceError{Op: "read", Err: fmt.Errorf("failed to decode nonce: %w", err)}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(f.CipherText)
	if err != nil {
		return nil, &model.PersistenceError{Op: "read", Err: fmt.Errorf("failed to decode ciphertext: %w", err)}
	}

	aesGCM, err := v.gcm()
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &model.PersistenceError{Op: "read", Err: fmt.Errorf("invalid password or corrupt store")}
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	m := map[string]string{}
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return nil, &model.PersistenceError{Op: "read", Err: fmt.Errorf("failed to unmarshal store data: %w", err)}
	}
	return m, nil
}

func (v *Vault) write(m map[string]string) error {
	plaintext, err := json.Marshal(m)
	if err != nil {
		return &model.PersistenceError{Op: "write", Err: fmt.Errorf("failed to marshal store data: %w", err)}
	}
	defer clear(plaintext)

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return &model.PersistenceError{Op: "write", Err: fmt.Errorf("failed to generate nonce: %w", err)}
	}

	aesGCM, err := v.gcm()
	if err != nil {
		return err
	}
	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	f := file{
		Salt:       base64.StdEncoding.EncodeToString(v.salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return &model.PersistenceError{Op: "write", Err: fmt.Errorf("failed to marshal store file: %w", err)}
	}

	if err := os.WriteFile(v.path, data, 0600); err != nil {
		return &model.PersistenceError{Op: "write", Err: err}
	}
	return nil
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, &model.PersistenceError{Op: "cipher", Err: err}
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &model.PersistenceError{Op: "cipher", Err: err}
	}
	return aesGCM, nil
}

// Rekey re-encrypts the store under a new password. Used by the rekey
// tool; the server never calls this.
func (v *Vault) Rekey(newPassword []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	m, err := v.read()
	if err != nil {
		return err
	}

	newSalt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, newSalt); err != nil {
		return &model.PersistenceError{Op: "rekey", Err: fmt.Errorf("failed to generate salt: %w", err)}
	}
	newKey, err := scrypt.Key(newPassword, newSalt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return &model.PersistenceError{Op: "rekey", Err: fmt.Errorf("failed to derive key: %w", err)}
	}

	clear(v.key)
	v.key = newKey
	v.salt = newSalt
	return v.write(m)
}
