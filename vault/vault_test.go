package vault_test

import (
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"github.com/jrsteele09/go-setoran-session/internal/securefile"
	"github.com/jrsteele09/go-setoran-session/vault"
	vaultfilerepo "github.com/jrsteele09/go-setoran-session/vault/filerepo"
	vaultfakerepo "github.com/jrsteele09/go-setoran-session/vault/repofake"
	"github.com/stretchr/testify/require"
)

func TestVault_SaveAndGet(t *testing.T) {
	v := vault.New(vaultfakerepo.NewFakeVaultRepo())
	require.False(t, v.Has())

	require.NoError(t, v.Save("1980010120050110", "rahasia"))
	require.True(t, v.Has())
	require.Equal(t, "1980010120050110", v.Identifier())
	require.Equal(t, "rahasia", v.Secret())

	c, ok := v.Get()
	require.True(t, ok)
	require.True(t, c.Present)
}

func TestVault_SaveOverwritesWholePair(t *testing.T) {
	v := vault.New(vaultfakerepo.NewFakeVaultRepo())
	require.NoError(t, v.Save("first", "secret-1"))
	require.NoError(t, v.Save("second", "secret-2"))

	require.Equal(t, "second", v.Identifier())
	require.Equal(t, "secret-2", v.Secret())
}

func TestVault_SaveRejectsEmpty(t *testing.T) {
	v := vault.New(vaultfakerepo.NewFakeVaultRepo())
	require.Error(t, v.Save("", "secret"))
	require.Error(t, v.Save("id", ""))
	require.False(t, v.Has())
}

func TestVault_InconsistentRecordIsAbsent(t *testing.T) {
	tests := map[string]vault.Credential{
		"flag unset":       {Identifier: "id", Secret: "s", Present: false},
		"missing secret":   {Identifier: "id", Present: true},
		"missing identity": {Secret: "s", Present: true},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			repo := vaultfakerepo.NewFakeVaultRepo()
			repo.Put(c)
			v := vault.New(repo)
			require.False(t, v.Has())
			require.Equal(t, "", v.Identifier())
			require.Equal(t, "", v.Secret())
		})
	}
}

func TestVault_ReadFailureFailsClosed(t *testing.T) {
	repo := vaultfakerepo.NewFakeVaultRepo()
	v := vault.New(repo)
	require.NoError(t, v.Save("id", "secret"))

	repo.FailLoads(true)
	require.False(t, v.Has())
	require.Equal(t, "", v.Identifier())
	require.Equal(t, "", v.Secret())
}

func TestVault_WriteFailureIsVaultError(t *testing.T) {
	repo := vaultfakerepo.NewFakeVaultRepo()
	v := vault.New(repo)
	require.NoError(t, v.Save("id", "secret"))

	repo.FailSaves(true)
	err := v.Save("other", "secret-2")
	require.ErrorIs(t, err, autherrors.ErrCredentialVault)
	require.ErrorIs(t, err, vaultfakerepo.ErrSimulatedFailure)
	require.False(t, v.Has(), "previous credential is cleared before the failed write")
}

func TestVault_ClearFailureKeepsCause(t *testing.T) {
	repo := vaultfakerepo.NewFakeVaultRepo()
	v := vault.New(repo)
	require.NoError(t, v.Save("id", "secret"))

	repo.FailDeletes(true)
	err := v.Clear()
	require.ErrorIs(t, err, autherrors.ErrCredentialVault)
	require.ErrorIs(t, err, vaultfakerepo.ErrSimulatedFailure)

	err = v.Save("other", "secret-2")
	require.ErrorIs(t, err, autherrors.ErrCredentialVault)
	require.ErrorIs(t, err, vaultfakerepo.ErrSimulatedFailure)
	require.Equal(t, "id", v.Identifier(), "a failed clear leaves the stored pair untouched")
}

func TestVault_Clear(t *testing.T) {
	v := vault.New(vaultfakerepo.NewFakeVaultRepo())
	require.NoError(t, v.Save("id", "secret"))
	require.NoError(t, v.Clear())
	require.False(t, v.Has())
}

func TestFileVault_EncryptedAtRest(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "credential.age")

	repo, err := vaultfilerepo.New(securefile.New(path, securefile.WithIdentity(identity)))
	require.NoError(t, err)
	v := vault.New(repo)
	require.NoError(t, v.Save("dosen@uin-suska.ac.id", "super-secret"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret")

	reopened, err := vaultfilerepo.New(securefile.New(path, securefile.WithIdentity(identity)))
	require.NoError(t, err)
	require.Equal(t, "dosen@uin-suska.ac.id", vault.New(reopened).Identifier())
}

func TestFileVault_WrongKeyFailsClosed(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "credential.age")
	repo, err := vaultfilerepo.New(securefile.New(path, securefile.WithIdentity(identity)))
	require.NoError(t, err)
	require.NoError(t, vault.New(repo).Save("id", "secret"))

	other, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	wrong, err := vaultfilerepo.New(securefile.New(path, securefile.WithIdentity(other)))
	require.NoError(t, err)
	require.False(t, vault.New(wrong).Has())
}

func TestFileVault_RequiresEncryption(t *testing.T) {
	_, err := vaultfilerepo.New(securefile.New(filepath.Join(t.TempDir(), "plain.json")))
	require.Error(t, err)
}
