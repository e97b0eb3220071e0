package vaultfakerepo

import (
	"errors"
	"sync"

	"github.com/jrsteele09/go-setoran-session/vault"
)

var _ vault.Repo = (*FakeVaultRepo)(nil)

var ErrSimulatedFailure = errors.New("simulated keystore failure")

type FakeVaultRepo struct {
	credential *vault.Credential
	failLoad   bool
	failSave   bool
	failDelete bool
	lock       sync.RWMutex
}

func NewFakeVaultRepo() *FakeVaultRepo {
	return &FakeVaultRepo{}
}

func (r *FakeVaultRepo) Load() (*vault.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.failLoad {
		return nil, ErrSimulatedFailure
	}
	if r.credential == nil {
		return nil, nil
	}
	c := *r.credential
	return &c, nil
}

func (r *FakeVaultRepo) Save(credential *vault.Credential) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.failSave {
		return ErrSimulatedFailure
	}
	c := *credential
	r.credential = &c
	return nil
}

func (r *FakeVaultRepo) Delete() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.failDelete {
		return ErrSimulatedFailure
	}
	r.credential = nil
	return nil
}

// Put stores a raw credential, including inconsistent ones, bypassing the vault.
func (r *FakeVaultRepo) Put(credential vault.Credential) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.credential = &credential
}

func (r *FakeVaultRepo) FailLoads(fail bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failLoad = fail
}

func (r *FakeVaultRepo) FailSaves(fail bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failSave = fail
}

func (r *FakeVaultRepo) FailDeletes(fail bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failDelete = fail
}
