package tokenfilerepo

import (
	"github.com/jrsteele09/go-setoran-session/internal/securefile"
	"github.com/jrsteele09/go-setoran-session/token"
)

var _ token.Repo = (*FileTokenRepo)(nil)

// FileTokenRepo keeps the token record in a single (optionally age-encrypted) JSON file that is
// replaced atomically on every write, so it survives process restarts without partial records.
type FileTokenRepo struct {
	file *securefile.File
}

func New(file *securefile.File) *FileTokenRepo {
	return &FileTokenRepo{file: file}
}

func (r *FileTokenRepo) Load() (*token.Record, error) {
	var record token.Record
	found, err := r.file.ReadJSON(&record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (r *FileTokenRepo) Save(record *token.Record) error {
	return r.file.WriteJSON(record)
}

func (r *FileTokenRepo) Delete() error {
	return r.file.Remove()
}
