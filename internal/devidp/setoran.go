package devidp

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-setoran-session/oauth2"
)

// Student is a student under a lecturer's academic supervision.
type Student struct {
	NIM      string `json:"nim"`
	Name     string `json:"nama"`
	Angkatan int    `json:"angkatan"`
}

// Setoran is one recorded memorisation submission.
type Setoran struct {
	ID          string    `json:"id"`
	ComponentID string    `json:"id_komponen_setoran"`
	Component   string    `json:"nama_komponen_setoran"`
	Validator   string    `json:"username_penyetor"`
	RecordedAt  time.Time `json:"tgl_setoran"`
}

type setoranItem struct {
	ID          string `json:"id,omitempty"`
	ComponentID string `json:"id_komponen_setoran"`
	Component   string `json:"nama_komponen_setoran,omitempty"`
}

type setoranPayload struct {
	Items []setoranItem `json:"data_setoran"`
}

type envelope struct {
	Response bool   `json:"response"`
	Message  string `json:"message"`
	Data     any    `json:"data,omitempty"`
}

// setoranBook is the in-memory resource store behind the dev API.
type setoranBook struct {
	mu       sync.RWMutex
	students map[string][]Student // by lecturer username
	records  map[string][]Setoran // by nim
}

func newSetoranBook() *setoranBook {
	return &setoranBook{
		students: make(map[string][]Student),
		records:  make(map[string][]Setoran),
	}
}

func (b *setoranBook) addStudent(lecturer string, student Student) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(lecturer)
	for i, existing := range b.students[key] {
		if existing.NIM == student.NIM {
			b.students[key][i] = student
			return
		}
	}
	b.students[key] = append(b.students[key], student)
}

func (b *setoranBook) studentsOf(lecturer string) []Student {
	b.mu.RLock()
	defer b.mu.RUnlock()
	students := append([]Student(nil), b.students[strings.ToLower(lecturer)]...)
	sort.Slice(students, func(i, j int) bool { return students[i].NIM < students[j].NIM })
	return students
}

func (b *setoranBook) supervises(lecturer, nim string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.students[strings.ToLower(lecturer)] {
		if s.NIM == nim {
			return true
		}
	}
	return false
}

func (b *setoranBook) list(nim string) []Setoran {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Setoran(nil), b.records[nim]...)
}

func (b *setoranBook) add(nim, validator string, items []setoranItem, at time.Time) []Setoran {
	b.mu.Lock()
	defer b.mu.Unlock()
	added := make([]Setoran, 0, len(items))
	for _, item := range items {
		rec := Setoran{
			ID:          uuid.NewString(),
			ComponentID: item.ComponentID,
			Component:   item.Component,
			Validator:   validator,
			RecordedAt:  at,
		}
		b.records[nim] = append(b.records[nim], rec)
		added = append(added, rec)
	}
	return added
}

// remove deletes the listed records and reports how many were found.
func (b *setoranBook) remove(nim string, items []setoranItem) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make(map[string]bool, len(items))
	for _, item := range items {
		ids[item.ID] = true
	}
	kept := b.records[nim][:0]
	removed := 0
	for _, rec := range b.records[nim] {
		if ids[rec.ID] {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	b.records[nim] = kept
	return removed
}

// DosenInfo returns the lecturer's profile and supervised students
func (s *Server) DosenInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		user, ok := s.users.GetByID(claims.Subject)
		if !ok {
			writeJSON(w, http.StatusNotFound, envelope{Message: "dosen not found"})
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Response: true,
			Message:  "data dosen",
			Data: map[string]any{
				"nip":   user.NIP,
				"nama":  user.Name,
				"email": user.Email,
				"info_mahasiswa_pa": map[string]any{
					"daftar_mahasiswa": s.setoran.studentsOf(user.Username),
				},
			},
		})
	}
}

func (s *Server) StudentSetoran() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nim, ok := s.supervisedNIM(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, envelope{
			Response: true,
			Message:  "data setoran",
			Data:     map[string]any{"nim": nim, "setoran": s.setoran.list(nim)},
		})
	}
}

func (s *Server) SubmitSetoran() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nim, ok := s.supervisedNIM(w, r)
		if !ok {
			return
		}
		payload, ok := decodeSetoranPayload(w, r)
		if !ok {
			return
		}
		for _, item := range payload.Items {
			if item.ComponentID == "" {
				writeJSON(w, http.StatusBadRequest, envelope{Message: "id_komponen_setoran is required"})
				return
			}
		}
		added := s.setoran.add(nim, claimsFrom(r.Context()).PreferredUsername, payload.Items, s.nowFunc().UTC())
		writeJSON(w, http.StatusCreated, envelope{Response: true, Message: "setoran recorded", Data: added})
	}
}

func (s *Server) CancelSetoran() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nim, ok := s.supervisedNIM(w, r)
		if !ok {
			return
		}
		payload, ok := decodeSetoranPayload(w, r)
		if !ok {
			return
		}
		if removed := s.setoran.remove(nim, payload.Items); removed != len(payload.Items) {
			writeJSON(w, http.StatusNotFound, envelope{Message: "setoran not found"})
			return
		}
		writeJSON(w, http.StatusOK, envelope{Response: true, Message: "setoran cancelled"})
	}
}

func (s *Server) supervisedNIM(w http.ResponseWriter, r *http.Request) (string, bool) {
	nim := chi.URLParam(r, "nim")
	if !s.setoran.supervises(claimsFrom(r.Context()).PreferredUsername, nim) {
		writeJSON(w, http.StatusForbidden, envelope{Message: "mahasiswa is not under your supervision"})
		return "", false
	}
	return nim, true
}

func decodeSetoranPayload(w http.ResponseWriter, r *http.Request) (setoranPayload, bool) {
	var payload setoranPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Items) == 0 {
		writeOAuthError(w, http.StatusBadRequest, oauth2.ErrInvalidRequest, "data_setoran is required")
		return payload, false
	}
	return payload, true
}
