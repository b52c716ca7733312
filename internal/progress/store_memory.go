package progress

import (
	"context"
	"sort"
	"sync"

	"github.com/skillpath/skillpath-lms/internal/exam"
)

type memoryStore struct {
	mu      sync.Mutex
	courses map[string]Course
	modules map[string]Module
	// progress key: studentID|moduleID
	progress map[string]ModuleProgress
	// certificate key: studentID|courseID
	certs map[string]Certificate
}

func NewInMemoryStore() Store {
	return &memoryStore{
		courses:  map[string]Course{},
		modules:  map[string]Module{},
		progress: map[string]ModuleProgress{},
		certs:    map[string]Certificate{},
	}
}

func pairKey(a, b string) string { return a + "|" + b }

func (m *memoryStore) PutCourse(_ context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
	return nil
}

func (m *memoryStore) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, exam.ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) PutModule(_ context.Context, mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[mod.ID] = mod
	return nil
}

func (m *memoryStore) GetModule(_ context.Context, id string) (Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[id]
	if !ok {
		return Module{}, exam.ErrNotFound
	}
	return mod, nil
}

func (m *memoryStore) ListModules(_ context.Context, courseID string) ([]Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Module
	for _, mod := range m.modules {
		if mod.CourseID == courseID {
			out = append(out, mod)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memoryStore) GetProgress(_ context.Context, studentID, courseID string) (map[string]ModuleProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]ModuleProgress{}
	for _, p := range m.progress {
		if p.StudentID != studentID {
			continue
		}
		if mod, ok := m.modules[p.ModuleID]; ok && mod.CourseID == courseID {
			out[p.ModuleID] = p
		}
	}
	return out, nil
}

func (m *memoryStore) MarkModulePassed(_ context.Context, p ModuleProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey(p.StudentID, p.ModuleID)
	if existing, ok := m.progress[k]; ok && existing.Passed {
		return nil // passed is sticky
	}
	p.Passed = true
	m.progress[k] = p
	return nil
}

func (m *memoryStore) CreateCertificate(_ context.Context, c Certificate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey(c.StudentID, c.CourseID)
	if _, ok := m.certs[k]; ok {
		return false, nil
	}
	m.certs[k] = c
	return true, nil
}

func (m *memoryStore) GetCertificate(_ context.Context, studentID, courseID string) (Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certs[pairKey(studentID, courseID)]
	if !ok {
		return Certificate{}, exam.ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) GetCertificateByCode(_ context.Context, code string) (Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.certs {
		if c.VerificationCode == code {
			return c, nil
		}
	}
	return Certificate{}, exam.ErrNotFound
}
