package config

import "path/filepath"

type StorageConfig interface {
	GetDataFolder() string
	GetTokenFile() string
	GetVaultFile() string
	GetKeyFile() string
	GetPINFile() string
	GetEncryptTokens() bool
}

type Storage struct{ values }

var _ StorageConfig = Storage{}

func (s Storage) GetDataFolder() string {
	return s.get("FOLDER", "./data")
}

func (s Storage) GetTokenFile() string {
	return s.get("TOKEN_FILE", filepath.Join(s.GetDataFolder(), "session.json"))
}

func (s Storage) GetVaultFile() string {
	return s.get("VAULT_FILE", filepath.Join(s.GetDataFolder(), "credential.age"))
}

// GetKeyFile is the age identity used to encrypt the vault (and the token file when enabled)
func (s Storage) GetKeyFile() string {
	return s.get("KEY_FILE", filepath.Join(s.GetDataFolder(), "identity.key"))
}

func (s Storage) GetPINFile() string {
	return s.get("PIN_FILE", filepath.Join(s.GetDataFolder(), "pin.hash"))
}

func (s Storage) GetEncryptTokens() bool {
	return s.bool("ENCRYPT_TOKENS", true)
}
