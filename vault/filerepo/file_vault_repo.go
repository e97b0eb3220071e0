package vaultfilerepo

import (
	"errors"

	"github.com/jrsteele09/go-setoran-session/internal/securefile"
	"github.com/jrsteele09/go-setoran-session/vault"
)

var _ vault.Repo = (*FileVaultRepo)(nil)

// FileVaultRepo stores the credential in an age-encrypted file.
type FileVaultRepo struct {
	file *securefile.File
}

// New requires an encrypted file; the vault never writes secrets in plain text.
func New(file *securefile.File) (*FileVaultRepo, error) {
	if !file.Encrypted() {
		return nil, errors.New("vault file must be encrypted")
	}
	return &FileVaultRepo{file: file}, nil
}

func (r *FileVaultRepo) Load() (*vault.Credential, error) {
	var credential vault.Credential
	found, err := r.file.ReadJSON(&credential)
	if err != nil || !found {
		return nil, err
	}
	return &credential, nil
}

func (r *FileVaultRepo) Save(credential *vault.Credential) error {
	return r.file.WriteJSON(credential)
}

func (r *FileVaultRepo) Delete() error {
	return r.file.Remove()
}
