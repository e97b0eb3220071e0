package tokenfakerepo

import (
	"errors"
	"sync"

	"github.com/jrsteele09/go-setoran-session/token"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

// ErrSimulatedFailure is returned by the fake when a failure has been injected.
var ErrSimulatedFailure = errors.New("simulated storage failure")

type FakeTokenRepo struct {
	record   *token.Record
	saves    int
	failSave bool
	failLoad bool
	lock     sync.RWMutex
}

func NewFakeTokensRepo() *FakeTokenRepo {
	return &FakeTokenRepo{}
}

func (tr *FakeTokenRepo) Load() (*token.Record, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	if tr.failLoad {
		return nil, ErrSimulatedFailure
	}
	if tr.record == nil {
		return nil, nil
	}
	r := *tr.record
	return &r, nil
}

func (tr *FakeTokenRepo) Save(record *token.Record) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if tr.failSave {
		return ErrSimulatedFailure
	}
	r := *record
	tr.record = &r
	tr.saves++
	return nil
}

func (tr *FakeTokenRepo) Delete() error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.record = nil
	return nil
}

// FailSaves makes every following Save fail, simulating a crash before the write lands.
func (tr *FakeTokenRepo) FailSaves(fail bool) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.failSave = fail
}

func (tr *FakeTokenRepo) FailLoads(fail bool) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.failLoad = fail
}

func (tr *FakeTokenRepo) Saves() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return tr.saves
}

// Stored returns a copy of what is persisted, bypassing any caching in the store.
func (tr *FakeTokenRepo) Stored() *token.Record {
	r, _ := tr.Load()
	return r
}
